package api

import (
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/dtfscope/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config     map[string]interface{} `json:"config"`
	ConfigFile string                 `json:"config_file,omitempty"` // path to the active config file
}

// handleGetConfig returns the running configuration with secrets masked.
// The YAML form is reused so keys match the config file.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	out, err := config.ToYAML(s.cfg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode config: "+err.Error())
		return
	}

	var tree map[string]interface{}
	if err := yaml.Unmarshal(out, &tree); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode config: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:     tree,
			ConfigFile: s.cfg.File,
		},
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	keys := config.CheckAPIKeys(s.cfg)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    keys,
	})
}
