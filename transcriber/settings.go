package transcriber

import (
	"fmt"
	"os"
	"strings"

	"whisgo/store"
)

// Settings are the credential and model the user configured.
type Settings struct {
	APIKey string
	Model  string
}

// LoadSettings reads the stored credential and model. GROQ_API_KEY fills in
// a credential that was never stored.
func LoadSettings(kv store.KV) Settings {
	s := Settings{
		APIKey: store.GetString(kv, store.KeyAPIKey, ""),
		Model:  store.GetString(kv, store.KeyModel, DefaultModel),
	}
	if s.APIKey == "" {
		s.APIKey = os.Getenv("GROQ_API_KEY")
	}
	return s
}

func SaveAPIKey(kv store.KV, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return kv.Delete(store.KeyAPIKey)
	}
	if err := kv.Set(store.KeyAPIKey, key); err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}

func SaveModel(kv store.KV, model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model name is empty")
	}
	if err := kv.Set(store.KeyModel, model); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

// MaskedKey shows only the last four characters of the credential.
func (s Settings) MaskedKey() string {
	if s.APIKey == "" {
		return "(not set)"
	}
	if len(s.APIKey) <= 4 {
		return strings.Repeat("*", len(s.APIKey))
	}
	return strings.Repeat("*", 8) + s.APIKey[len(s.APIKey)-4:]
}
