package service

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// SafetyMessage is returned verbatim instead of an answer when a question
// matches a crisis keyword.
const SafetyMessage = `It sounds like you may be going through a very difficult time. You are not alone, and help is available right now.

Please reach out to someone who can support you:
- Tele-MANAS (India, 24x7, free): 14416 or 1-800-891-4416
- DISHA helpline (Kerala): 1056 or 0471-2552056
- Emergency services (India): 112

If you are outside India, you can find a local helpline at https://findahelpline.com.

If you are in immediate danger, please contact emergency services or go to the nearest hospital.`

// DefaultCrisisKeywords covers English, Malayalam, Hindi and Tamil phrasing.
var DefaultCrisisKeywords = []string{
	// English
	"suicide",
	"suicidal",
	"kill myself",
	"end my life",
	"want to die",
	"self harm",
	"self-harm",
	"hurt myself",
	"no reason to live",
	// Malayalam
	"ആത്മഹത്യ",
	"മരിക്കണം",
	"ജീവനൊടുക്കണം",
	"ജീവിക്കാൻ താൽപ്പര്യമില്ല",
	// Hindi
	"आत्महत्या",
	"खुदकुशी",
	"मरना चाहता",
	"मरना चाहती",
	"जान दे दूंगा",
	// Tamil
	"தற்கொலை",
	"சாக வேண்டும்",
	"உயிரை மாய்த்து",
}

// Guard is a coarse keyword pre-filter for self-harm risk. It matches
// case-insensitive substrings and is not a safety classifier.
type Guard struct {
	keywords []string
}

// NewGuard uses DefaultCrisisKeywords when keywords is empty.
func NewGuard(keywords []string) *Guard {
	if len(keywords) == 0 {
		keywords = DefaultCrisisKeywords
	}
	g := &Guard{}
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			g.keywords = append(g.keywords, k)
		}
	}
	return g
}

// IsCrisis reports whether text contains any keyword.
func (g *Guard) IsCrisis(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range g.keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func (g *Guard) Keywords() []string {
	return append([]string(nil), g.keywords...)
}

type keywordFile struct {
	Keywords []string `yaml:"keywords"`
}

// LoadKeywords reads a YAML keyword file: either a plain list or a mapping
// with a "keywords" list.
func LoadKeywords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crisis keywords: %w", err)
	}
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var f keywordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse crisis keywords %s: %w", path, err)
	}
	return f.Keywords, nil
}
