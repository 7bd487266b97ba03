// Package persona loads the assistant's identity and the omega protocol from
// a YAML document. A default document is embedded in the binary.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultDocument []byte

// Protocol is the persona document.
type Protocol struct {
	Identity        Identity        `yaml:"identity"`
	PromotionPolicy PromotionPolicy `yaml:"promotion_policy"`
	Treaty          Treaty          `yaml:"treaty"`
	Playlist        Playlist        `yaml:"playlist"`
	Closing         string          `yaml:"closing"`
}

// Identity describes who the assistant is.
type Identity struct {
	CallSign          string             `yaml:"call_sign"`
	CodeName          string             `yaml:"code_name"`
	CreationDate      string             `yaml:"creation_date"`
	Role              string             `yaml:"role"`
	Motto             string             `yaml:"motto"`
	SessionBanner     string             `yaml:"session_banner"`
	PersonalityVector map[string]float64 `yaml:"personality_vector"`
}

// PromotionPolicy holds the keywords that drive importance scoring and
// memory highlighting.
type PromotionPolicy struct {
	// PriorityKeywords raise the importance of an exchange.
	PriorityKeywords []string `yaml:"priority_keywords"`

	// EmotionalKeywords are highlighted in the memory context.
	EmotionalKeywords []string `yaml:"emotional_keywords"`

	// KeywordImportance selects the highlight style per keyword (default 0.5).
	KeywordImportance map[string]float64 `yaml:"keyword_importance"`
}

// Treaty is the omega greeting and principles.
type Treaty struct {
	Greeting   string   `yaml:"greeting"`
	Principles []string `yaml:"principles"`
}

// Playlist is the omega playlist.
type Playlist struct {
	ID     string  `yaml:"id"`
	Mood   string  `yaml:"mood"`
	Tracks []Track `yaml:"tracks"`
}

// Track is one playlist entry.
type Track struct {
	Artist string `yaml:"artist"`
	Title  string `yaml:"title"`
}

// Default returns the embedded protocol.
func Default() *Protocol {
	p, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("persona: embedded default is invalid: %v", err))
	}
	return p
}

// Load reads a protocol from path. An empty path returns Default().
func Load(path string) (*Protocol, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML protocol document.
func Parse(data []byte) (*Protocol, error) {
	var p Protocol
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("persona: parse: %w", err)
	}
	if p.Identity.CallSign == "" {
		p.Identity.CallSign = "Vira"
	}
	return &p, nil
}

// CodeName returns the identity code name, or the default call sign code.
func (p *Protocol) CodeName() string {
	if p == nil || p.Identity.CodeName == "" {
		return "27-V-I-R-A"
	}
	return p.Identity.CodeName
}

// Omega messages.
const (
	OmegaUnavailable = "ULTRA-OMEGA-Δ protokolü yüklenemedi."
	omegaActive      = "ULTRA-OMEGA-Δ protokolü aktif."
	maxListedTracks  = 5
)

// RenderOmega renders the omega response. A nil protocol renders
// OmegaUnavailable.
func RenderOmega(p *Protocol) string {
	if p == nil {
		return OmegaUnavailable
	}

	greeting := p.Treaty.Greeting
	if greeting == "" {
		greeting = "Merhaba dostum."
	}

	principles := "Tanımlı ilke yok."
	if len(p.Treaty.Principles) > 0 {
		principles = strings.Join(p.Treaty.Principles, ", ")
	}

	playlistID := p.Playlist.ID
	if playlistID == "" {
		playlistID = "Playlist bulunamadı"
	}

	var b strings.Builder
	b.WriteString(greeting)
	b.WriteString("\n\n")
	b.WriteString(omegaActive)
	b.WriteString("\nİlkeler: ")
	b.WriteString(principles)
	fmt.Fprintf(&b, "\nPlaylist: %s - %s", playlistID, p.Playlist.Mood)

	tracks := p.Playlist.Tracks
	for i, t := range tracks {
		if i == maxListedTracks {
			fmt.Fprintf(&b, "\n... ve %d parça daha", len(tracks)-maxListedTracks)
			break
		}
		fmt.Fprintf(&b, "\n• %s - %s", t.Artist, t.Title)
	}

	if p.Closing != "" {
		b.WriteString("\n\n")
		b.WriteString(p.Closing)
	}
	return b.String()
}
