package alerts

import (
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Region is one canonical region with the names and codes providers use for it.
type Region struct {
	Name    string   `json:"name"`
	Codes   []string `json:"codes,omitempty"`
	Aliases []string `json:"aliases,omitempty"`
}

// DefaultRegions are the 27 first-level regions of Ukraine. Codes follow the
// oblast numbering shared by UkraineAlarm and alerts.in.ua.
var DefaultRegions = []Region{
	{Name: "Автономна Республіка Крим", Codes: []string{"29", "9999"}, Aliases: []string{"АР Крим", "Крим", "Crimea"}},
	{Name: "Вінницька область", Codes: []string{"4"}, Aliases: []string{"Vinnytsia oblast"}},
	{Name: "Волинська область", Codes: []string{"8"}, Aliases: []string{"Volyn oblast"}},
	{Name: "Дніпропетровська область", Codes: []string{"9"}, Aliases: []string{"Dnipropetrovsk oblast"}},
	{Name: "Донецька область", Codes: []string{"28"}, Aliases: []string{"Donetsk oblast"}},
	{Name: "Житомирська область", Codes: []string{"10"}, Aliases: []string{"Zhytomyr oblast"}},
	{Name: "Закарпатська область", Codes: []string{"11"}, Aliases: []string{"Zakarpattia oblast"}},
	{Name: "Запорізька область", Codes: []string{"12"}, Aliases: []string{"Zaporizhzhia oblast"}},
	{Name: "Івано-Франківська область", Codes: []string{"13"}, Aliases: []string{"Ivano-Frankivsk oblast"}},
	{Name: "Київська область", Codes: []string{"14"}, Aliases: []string{"Kyiv oblast"}},
	{Name: "Кіровоградська область", Codes: []string{"15"}, Aliases: []string{"Kirovohrad oblast"}},
	{Name: "Луганська область", Codes: []string{"16"}, Aliases: []string{"Luhansk oblast"}},
	{Name: "Львівська область", Codes: []string{"27"}, Aliases: []string{"Lviv oblast"}},
	{Name: "Миколаївська область", Codes: []string{"17"}, Aliases: []string{"Mykolaiv oblast"}},
	{Name: "Одеська область", Codes: []string{"18"}, Aliases: []string{"Odesa oblast"}},
	{Name: "Полтавська область", Codes: []string{"19"}, Aliases: []string{"Poltava oblast"}},
	{Name: "Рівненська область", Codes: []string{"5"}, Aliases: []string{"Rivne oblast"}},
	{Name: "Сумська область", Codes: []string{"20"}, Aliases: []string{"Sumy oblast"}},
	{Name: "Тернопільська область", Codes: []string{"21"}, Aliases: []string{"Ternopil oblast"}},
	{Name: "Харківська область", Codes: []string{"22"}, Aliases: []string{"Kharkiv oblast"}},
	{Name: "Херсонська область", Codes: []string{"23"}, Aliases: []string{"Kherson oblast"}},
	{Name: "Хмельницька область", Codes: []string{"3"}, Aliases: []string{"Khmelnytskyi oblast"}},
	{Name: "Черкаська область", Codes: []string{"24"}, Aliases: []string{"Cherkasy oblast"}},
	{Name: "Чернівецька область", Codes: []string{"26"}, Aliases: []string{"Chernivtsi oblast"}},
	{Name: "Чернігівська область", Codes: []string{"25"}, Aliases: []string{"Chernihiv oblast"}},
	{Name: "м. Київ", Codes: []string{"31"}, Aliases: []string{"Київ", "Kyiv", "Kyiv city"}},
	{Name: "м. Севастополь", Codes: []string{"30"}, Aliases: []string{"Севастополь", "Sevastopol"}},
}

// RegionTable maps provider names and codes to canonical region names.
type RegionTable struct {
	names  []string
	byName map[string]string
	byCode map[string]string
}

// NewRegionTable indexes regions by canonical name, aliases and codes.
func NewRegionTable(regions []Region) *RegionTable {
	t := &RegionTable{
		byName: make(map[string]string),
		byCode: make(map[string]string),
	}
	for _, r := range regions {
		t.names = append(t.names, r.Name)
		t.byName[normalizeName(r.Name)] = r.Name
		for _, a := range r.Aliases {
			t.byName[normalizeName(a)] = r.Name
		}
		for _, c := range r.Codes {
			t.byCode[strings.TrimSpace(c)] = r.Name
		}
	}
	t.sort(t.names)
	return t
}

// Names returns canonical region names in Ukrainian alphabetical order.
func (t *RegionTable) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Lookup resolves a provider name to its canonical region.
func (t *RegionTable) Lookup(name string) (string, bool) {
	n, ok := t.byName[normalizeName(name)]
	return n, ok
}

// Resolve maps a record to its canonical region. Records below oblast level roll up
// to their oblast.
func (t *RegionTable) Resolve(rec Record) (string, bool) {
	candidates := []func() (string, bool){
		func() (string, bool) { return t.Lookup(rec.Name) },
		func() (string, bool) { return t.byCodeLookup(rec.Code) },
	}
	if rec.SubOblast {
		candidates = []func() (string, bool){
			func() (string, bool) { return t.Lookup(rec.Oblast) },
			func() (string, bool) { return t.byCodeLookup(rec.Code) },
			func() (string, bool) { return t.Lookup(rec.Name) },
		}
	}
	for _, try := range candidates {
		if name, ok := try(); ok {
			return name, true
		}
	}
	return "", false
}

// Normalize turns provider records into facts for every canonical region, plus
// unresolved records passed through under their reported name. Facts are sorted by region.
func (t *RegionTable) Normalize(records []Record, log *zap.Logger) []Fact {
	if log == nil {
		log = zap.NewNop()
	}

	facts := make(map[string]*Fact, len(t.names))
	for _, n := range t.names {
		facts[n] = &Fact{Region: n}
	}

	for _, rec := range records {
		name, ok := t.Resolve(rec)
		if !ok {
			name = strings.TrimSpace(rec.Name)
			if name == "" {
				log.Warn("alert record without location skipped", zap.String("code", rec.Code))
				continue
			}
			log.Warn("unmapped alert region", zap.String("name", name), zap.String("oblast", rec.Oblast), zap.String("code", rec.Code))
		}
		f, exists := facts[name]
		if !exists {
			f = &Fact{Region: name}
			facts[name] = f
		}
		f.Active = true
		if rec.AlertType != "" && !slices.Contains(f.Types, rec.AlertType) {
			f.Types = append(f.Types, rec.AlertType)
		}
	}

	names := make([]string, 0, len(facts))
	for n := range facts {
		names = append(names, n)
	}
	t.sort(names)

	out := make([]Fact, 0, len(names))
	for _, n := range names {
		out = append(out, *facts[n])
	}
	return out
}

func (t *RegionTable) byCodeLookup(code string) (string, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	n, ok := t.byCode[code]
	return n, ok
}

func (t *RegionTable) sort(names []string) {
	// Collators keep internal buffers and are not safe for concurrent use.
	c := collate.New(language.Ukrainian)
	sort.SliceStable(names, func(i, j int) bool {
		return c.CompareString(names[i], names[j]) < 0
	})
}

var nameReplacer = strings.NewReplacer(
	"’", "'",
	"ʼ", "'",
	"`", "'",
	"обл.", "область",
	"м.", "м. ",
)

func normalizeName(s string) string {
	s = nameReplacer.Replace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), " ")
}
