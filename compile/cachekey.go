package compile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/hazyhaar/promptcap/prompt"
)

// CacheKey hashes the sorted prompt contents with the options that change
// the output. o.Provider and o.Model must be the routed ones. Credentials
// and user identity are not part of the key.
func CacheKey(prompts []prompt.Prompt, o Options) string {
	contents := prompt.Contents(prompts)
	sort.Strings(contents)
	payload, _ := json.Marshal(struct {
		Contents []string `json:"c"`
		Format   string   `json:"f"`
		Tone     string   `json:"t"`
		Mode     string   `json:"m"`
		AI       bool     `json:"ai"`
		Provider string   `json:"p"`
		Model    string   `json:"mo"`
		Info     string   `json:"i"`
	}{contents, o.Format, o.Tone, o.Mode, o.IncludeAI, o.Provider, o.Model, o.AdditionalInfo})
	sum := sha256.Sum256(payload)
	return "summary:" + hex.EncodeToString(sum[:])
}
