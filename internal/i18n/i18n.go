package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Language represents a supported language
type Language string

const (
	// LanguageEnglish is the fallback language
	LanguageEnglish Language = "en"
	// LanguageJapanese language
	LanguageJapanese Language = "ja"
	// LanguageGreek language
	LanguageGreek Language = "el"
)

// Translator manages translations for the application
type Translator struct {
	currentLanguage Language
	translations    map[Language]map[string]string
	mu              sync.RWMutex
}

// NewTranslator creates an empty translator
func NewTranslator(language Language) *Translator {
	return &Translator{
		currentLanguage: language,
		translations:    make(map[Language]map[string]string),
	}
}

// NewDefaultTranslator creates a translator preloaded with the built-in
// strings for every supported language
func NewDefaultTranslator(language Language) *Translator {
	t := NewTranslator(language)
	t.SetTranslations(LanguageEnglish, DefaultEnglishTranslations())
	t.SetTranslations(LanguageJapanese, DefaultJapaneseTranslations())
	t.SetTranslations(LanguageGreek, DefaultGreekTranslations())
	return t
}

// SetTranslations replaces the table for language
func (t *Translator) SetTranslations(language Language, translations map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.translations[language] = translations
}

// LoadTranslations merges translations from JSON data over any existing
// entries for language
func (t *Translator) LoadTranslations(language Language, data []byte) error {
	var translations map[string]string
	if err := json.Unmarshal(data, &translations); err != nil {
		return fmt.Errorf("failed to unmarshal translations: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	table, ok := t.translations[language]
	if !ok {
		table = make(map[string]string, len(translations))
		t.translations[language] = table
	}
	for k, v := range translations {
		table[k] = v
	}
	return nil
}

// LoadTranslationsFromFile loads translations from a JSON file
func (t *Translator) LoadTranslationsFromFile(language Language, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read translation file: %w", err)
	}

	return t.LoadTranslations(language, data)
}

// SetLanguage sets the current language
func (t *Translator) SetLanguage(language Language) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentLanguage = language
}

// GetLanguage returns the current language
func (t *Translator) GetLanguage() Language {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentLanguage
}

// Translate translates a key in the current language, falling back to
// English and then to the key itself
func (t *Translator) Translate(key string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if text, ok := t.translations[t.currentLanguage][key]; ok {
		return text
	}
	if t.currentLanguage != LanguageEnglish {
		if text, ok := t.translations[LanguageEnglish][key]; ok {
			return text
		}
	}
	return key
}

// TranslateWithFormat translates a key and substitutes {param} placeholders
func (t *Translator) TranslateWithFormat(key string, params map[string]string) string {
	text := t.Translate(key)
	for param, value := range params {
		text = strings.ReplaceAll(text, "{"+param+"}", value)
	}
	return text
}

// GetAllTranslations returns a copy of the current language's table
func (t *Translator) GetAllTranslations() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]string, len(t.translations[t.currentLanguage]))
	for k, v := range t.translations[t.currentLanguage] {
		result[k] = v
	}
	return result
}

// HasTranslation checks if a translation key exists in the current language
func (t *Translator) HasTranslation(key string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.translations[t.currentLanguage][key]
	return ok
}

// ValidateLanguage validates that a language is supported
func ValidateLanguage(language string) bool {
	for _, l := range GetSupportedLanguages() {
		if string(l) == language {
			return true
		}
	}
	return false
}

// DetectSystemLanguage picks a supported language from the POSIX locale
// variables, defaulting to English
func DetectSystemLanguage() Language {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		code := strings.ToLower(v)
		if i := strings.IndexAny(code, "_.@-"); i >= 0 {
			code = code[:i]
		}
		if ValidateLanguage(code) {
			return Language(code)
		}
		return LanguageEnglish
	}
	return LanguageEnglish
}

// GetSupportedLanguages returns a list of supported languages
func GetSupportedLanguages() []Language {
	return []Language{LanguageEnglish, LanguageJapanese, LanguageGreek}
}

// DefaultEnglishTranslations returns default English translations
func DefaultEnglishTranslations() map[string]string {
	return map[string]string{
		// Menu items
		"menu.talk":            "Talk",
		"menu.stop":            "Stop and Send",
		"menu.copy_session_id": "Copy Session ID",
		"menu.settings":        "Open Settings...",
		"menu.quit":            "Quit",

		// Settings
		"settings.title":        "Moira Settings",
		"settings.audio_device": "Input Device",

		// Permissions
		"permission.microphone": "Microphone",
		"permission.granted":    "✓ Granted",
		"permission.denied":     "✗ Denied",
		"permission.request":    "Open Settings",

		// Errors, one per failure kind
		"error.capability": "Audio recording is not supported on this system.",
		"error.permission": "Microphone access is required. Please allow access and try again.",
		"error.capture":    "Recording could not be completed. Please try again.",
		"error.transport":  "An error occurred while contacting Moira. Please try again.",
		"error.playback":   "Could not play the audio response.",

		// Notifications
		"notification.session_copied": "Session ID copied to clipboard",

		// Status
		"status.idle":      "Ready",
		"status.capturing": "Listening...",
		"status.uploading": "Thinking...",
		"status.speaking":  "Speaking",
	}
}

// DefaultJapaneseTranslations returns default Japanese translations
func DefaultJapaneseTranslations() map[string]string {
	return map[string]string{
		// Menu items
		"menu.talk":            "話す",
		"menu.stop":            "停止して送信",
		"menu.copy_session_id": "セッションIDをコピー",
		"menu.settings":        "設定を開く...",
		"menu.quit":            "終了",

		// Settings
		"settings.title":        "Moira 設定",
		"settings.audio_device": "入力デバイス",

		// Permissions
		"permission.microphone": "マイク",
		"permission.granted":    "✓ 許可済み",
		"permission.denied":     "✗ 拒否",
		"permission.request":    "設定を開く",

		// Errors
		"error.capability": "このシステムでは録音がサポートされていません。",
		"error.permission": "マイクへのアクセスが必要です。許可してからもう一度お試しください。",
		"error.capture":    "録音を完了できませんでした。もう一度お試しください。",
		"error.transport":  "Moiraとの通信中にエラーが発生しました。もう一度お試しください。",
		"error.playback":   "音声の応答を再生できませんでした。",

		// Notifications
		"notification.session_copied": "セッションIDをクリップボードにコピーしました",

		// Status
		"status.idle":      "待機中",
		"status.capturing": "録音中...",
		"status.uploading": "考え中...",
		"status.speaking":  "再生中",
	}
}

// DefaultGreekTranslations returns default Greek translations
func DefaultGreekTranslations() map[string]string {
	return map[string]string{
		"menu.talk":            "Μίλησε",
		"menu.stop":            "Διακοπή και αποστολή",
		"menu.copy_session_id": "Αντιγραφή αναγνωριστικού συνεδρίας",
		"menu.settings":        "Ρυθμίσεις...",
		"menu.quit":            "Έξοδος",

		"settings.title":        "Ρυθμίσεις Moira",
		"settings.audio_device": "Συσκευή εισόδου",

		"permission.microphone": "Μικρόφωνο",
		"permission.granted":    "✓ Επιτρέπεται",
		"permission.denied":     "✗ Απορρίφθηκε",
		"permission.request":    "Άνοιγμα ρυθμίσεων",

		"error.capability": "Η ηχογράφηση δεν υποστηρίζεται σε αυτό το σύστημα.",
		"error.permission": "Απαιτείται πρόσβαση στο μικρόφωνο. Επιτρέψτε την πρόσβαση και δοκιμάστε ξανά.",
		"error.capture":    "Η ηχογράφηση δεν ολοκληρώθηκε. Δοκιμάστε ξανά.",
		"error.transport":  "Παρουσιάστηκε σφάλμα στην επικοινωνία με τη Moira. Δοκιμάστε ξανά.",
		"error.playback":   "Δεν ήταν δυνατή η αναπαραγωγή της απάντησης.",

		"notification.session_copied": "Το αναγνωριστικό συνεδρίας αντιγράφηκε",

		"status.idle":      "Έτοιμο",
		"status.capturing": "Ακούω...",
		"status.uploading": "Σκέφτομαι...",
		"status.speaking":  "Μιλάω",
	}
}
