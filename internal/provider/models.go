package provider

// ModelType represents a standard data model type served by providers.
// Each ModelType maps to a specific data structure in pkg/models/.
type ModelType string

// --- Market categories ---
const (
	// ModelCategoryList → []models.Category
	ModelCategoryList ModelType = "CategoryList"
	// ModelCategoryMarkets → []models.AssetRecord
	ModelCategoryMarkets ModelType = "CategoryMarkets"
)

// AllModels returns every model type known to the application.
func AllModels() []ModelType {
	return []ModelType{
		ModelCategoryList,
		ModelCategoryMarkets,
	}
}
