package coingecko

// --- /ping ---

type pingResponse struct {
	GeckoSays string `json:"gecko_says"`
}

// Category catalog and market rows decode straight into pkg/models types:
// /coins/categories/list → []models.Category
// /coins/markets         → []models.AssetRecord
