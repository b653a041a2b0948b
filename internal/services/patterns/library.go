package patterns

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"MacroChain/internal/domain/models"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultLibrary []byte

var validate = validator.New()

// Library is the keyword and pattern catalog the extraction stages run against.
// It is pure data once compiled and safe for concurrent use.
type Library struct {
	Version           string              `yaml:"version" default:"dev"`
	Events            []EventCategory     `yaml:"events" validate:"required,min=1,dive"`
	Severity          SeverityTable       `yaml:"severity"`
	Regions           []Region            `yaml:"regions" validate:"dive"`
	Roles             RolePatterns        `yaml:"roles"`
	Entities          EntityLists         `yaml:"entities"`
	Polarity          Polarity            `yaml:"polarity"`
	Certainty         Certainty           `yaml:"certainty"`
	Connectives       []string            `yaml:"connectives" validate:"required,min=1,dive,required"`
	SupplyTerms       []string            `yaml:"supply_terms" validate:"dive,required"`
	Horizons          []HorizonTerms      `yaml:"horizons" validate:"dive"`
	InstrumentSectors map[string][]string `yaml:"instrument_sectors"`

	severityHigh   *PhraseSet
	severityMedium *PhraseSet
	regions        []compiledRegion
	roles          map[models.StepRole][]*regexp.Regexp
	entities       []EntityTerm
	positive       *PhraseSet
	negative       *PhraseSet
	certain        *PhraseSet
	hedging        *PhraseSet
	connectives    *PhraseSet
	supply         *PhraseSet
	horizons       []compiledHorizon
}

type EventCategory struct {
	Family   models.EventFamily `yaml:"family" validate:"required,oneof=corporate economic geopolitical supply_chain"`
	Category string             `yaml:"category" validate:"required"`
	Label    string             `yaml:"label"`
	Keywords []string           `yaml:"keywords" validate:"required,min=1,dive,required"`
}

type SeverityTable struct {
	High        []string `yaml:"high"`
	Medium      []string `yaml:"medium"`
	HighScore   float64  `yaml:"high_score" default:"0.8" validate:"gte=0,lte=1"`
	MediumScore float64  `yaml:"medium_score" default:"0.6" validate:"gte=0,lte=1"`
	BaseScore   float64  `yaml:"base_score" default:"0.4" validate:"gte=0,lte=1"`
}

type Region struct {
	Name     string   `yaml:"name" validate:"required"`
	Keywords []string `yaml:"keywords" validate:"required,min=1,dive,required"`
}

// RolePatterns holds regular expression fragments per causal role.
// Each fragment is matched on word boundaries and expanded to the clause containing it.
type RolePatterns struct {
	Trigger      []string `yaml:"trigger" validate:"required,min=1,dive,required"`
	Intermediate []string `yaml:"intermediate" validate:"required,min=1,dive,required"`
	Outcome      []string `yaml:"outcome" validate:"required,min=1,dive,required"`
}

type EntityLists struct {
	Company   []string `yaml:"company"`
	Sector    []string `yaml:"sector"`
	Commodity []string `yaml:"commodity"`
	Country   []string `yaml:"country"`
	Currency  []string `yaml:"currency"`
}

type Polarity struct {
	Positive []string `yaml:"positive" validate:"required,min=1"`
	Negative []string `yaml:"negative" validate:"required,min=1"`
}

type Certainty struct {
	Certain      []string `yaml:"certain"`
	Hedging      []string `yaml:"hedging"`
	CertainScore float64  `yaml:"certain_score" default:"0.8" validate:"gte=0,lte=1"`
	HedgingScore float64  `yaml:"hedging_score" default:"0.4" validate:"gte=0,lte=1"`
	DefaultScore float64  `yaml:"default_score" default:"0.6" validate:"gte=0,lte=1"`
}

type HorizonTerms struct {
	Horizon models.Horizon `yaml:"horizon" validate:"required,oneof=1w 1m 3m 6m 1y"`
	Terms   []string       `yaml:"terms" validate:"required,min=1,dive,required"`
}

// EntityTerm is one curated entity with its kind.
type EntityTerm struct {
	Term string
	Kind models.EntityKind
	re   *regexp.Regexp
}

// Match reports whether the term (or its plural) occurs in text as a whole word.
func (e EntityTerm) Match(text string) bool { return e.re.MatchString(text) }

type compiledRegion struct {
	name string
	set  *PhraseSet
}

type compiledHorizon struct {
	horizon models.Horizon
	set     *PhraseSet
}

// Load reads a library from path, or the embedded default when path is empty.
func Load(path string) (*Library, error) {
	if path == "" {
		return Parse(defaultLibrary)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern library: %w", err)
	}
	return Parse(b)
}

// Default returns the embedded library.
func Default() (*Library, error) { return Parse(defaultLibrary) }

// Parse decodes, defaults, validates and compiles a YAML library.
func Parse(data []byte) (*Library, error) {
	var l Library
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse pattern library: %w", err)
	}
	if err := defaults.Set(&l); err != nil {
		return nil, fmt.Errorf("pattern library defaults: %w", err)
	}
	if err := validate.Struct(&l); err != nil {
		return nil, fmt.Errorf("validate pattern library: %w", err)
	}
	if err := l.compile(); err != nil {
		return nil, fmt.Errorf("compile pattern library: %w", err)
	}
	return &l, nil
}

const clauseChars = `(?:[^.!?\n]|\.\d)*`

func (l *Library) compile() error {
	var err error
	if l.severityHigh, err = NewPhraseSet(l.Severity.High); err != nil {
		return fmt.Errorf("severity.high: %w", err)
	}
	if l.severityMedium, err = NewPhraseSet(l.Severity.Medium); err != nil {
		return fmt.Errorf("severity.medium: %w", err)
	}
	for _, r := range l.Regions {
		set, err := NewPhraseSet(r.Keywords)
		if err != nil {
			return fmt.Errorf("region %s: %w", r.Name, err)
		}
		l.regions = append(l.regions, compiledRegion{name: r.Name, set: set})
	}

	l.roles = make(map[models.StepRole][]*regexp.Regexp, 3)
	for role, frags := range map[models.StepRole][]string{
		models.RoleTrigger:      l.Roles.Trigger,
		models.RoleIntermediate: l.Roles.Intermediate,
		models.RoleOutcome:      l.Roles.Outcome,
	} {
		for _, f := range frags {
			// a clause runs to the sentence end; decimal points ("0.25") stay inside it
			re, err := regexp.Compile(`(?i)` + clauseChars + `\b(?:` + f + `)\b` + clauseChars)
			if err != nil {
				return fmt.Errorf("roles.%s %q: %w", role, f, err)
			}
			l.roles[role] = append(l.roles[role], re)
		}
	}

	for _, group := range []struct {
		kind  models.EntityKind
		terms []string
	}{
		{models.EntityCompany, l.Entities.Company},
		{models.EntitySector, l.Entities.Sector},
		{models.EntityCommodity, l.Entities.Commodity},
		{models.EntityCountry, l.Entities.Country},
		{models.EntityCurrency, l.Entities.Currency},
	} {
		for _, t := range group.terms {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(t) + `(?:s|es)?\b`)
			if err != nil {
				return fmt.Errorf("entity %q: %w", t, err)
			}
			l.entities = append(l.entities, EntityTerm{Term: t, Kind: group.kind, re: re})
		}
	}

	sets := []struct {
		name  string
		dst   **PhraseSet
		terms []string
	}{
		{"polarity.positive", &l.positive, l.Polarity.Positive},
		{"polarity.negative", &l.negative, l.Polarity.Negative},
		{"certainty.certain", &l.certain, l.Certainty.Certain},
		{"certainty.hedging", &l.hedging, l.Certainty.Hedging},
		{"connectives", &l.connectives, l.Connectives},
		{"supply_terms", &l.supply, l.SupplyTerms},
	}
	for _, s := range sets {
		set, err := NewPhraseSet(s.terms)
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		*s.dst = set
	}

	for _, h := range l.Horizons {
		set, err := NewPhraseSet(h.Terms)
		if err != nil {
			return fmt.Errorf("horizon %s: %w", h.Horizon, err)
		}
		l.horizons = append(l.horizons, compiledHorizon{horizon: h.Horizon, set: set})
	}
	return nil
}

// RoleExpressions returns the compiled clause expressions for a role.
func (l *Library) RoleExpressions(role models.StepRole) []*regexp.Regexp { return l.roles[role] }

// EntityTerms returns curated entities in kind priority order.
func (l *Library) EntityTerms() []EntityTerm { return l.entities }

// SeverityOf scores a context sentence.
func (l *Library) SeverityOf(context string) float64 {
	switch {
	case l.severityHigh.Any(context):
		return l.Severity.HighScore
	case l.severityMedium.Any(context):
		return l.Severity.MediumScore
	default:
		return l.Severity.BaseScore
	}
}

// RegionsOf returns the sorted regions whose keywords hit the context.
func (l *Library) RegionsOf(context string) []string {
	var out []string
	for _, r := range l.regions {
		if r.set.Any(context) {
			out = append(out, r.name)
		}
	}
	sort.Strings(out)
	return out
}

func (l *Library) Positive() *PhraseSet      { return l.positive }
func (l *Library) Negative() *PhraseSet      { return l.negative }
func (l *Library) Certain() *PhraseSet       { return l.certain }
func (l *Library) Hedging() *PhraseSet       { return l.hedging }
func (l *Library) ConnectiveSet() *PhraseSet { return l.connectives }
func (l *Library) Supply() *PhraseSet        { return l.supply }

// HorizonOf returns the first horizon bucket whose vocabulary occurs in text.
func (l *Library) HorizonOf(text string) (models.Horizon, bool) {
	for _, h := range l.horizons {
		if h.set.Any(text) {
			return h.horizon, true
		}
	}
	return "", false
}

// SectorsFor returns the library's sector mapping for an instrument symbol.
func (l *Library) SectorsFor(symbol string) []string { return l.InstrumentSectors[symbol] }
