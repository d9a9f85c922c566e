package mapgen

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed assets/regions_map.svg
var assetsFS embed.FS

// DefaultShapes maps canonical region names to shape ids of the embedded template.
var DefaultShapes = map[string]string{
	"м. Київ":                   "UA-30",
	"Київська область":          "UA-32",
	"Вінницька область":         "UA-05",
	"Волинська область":         "UA-07",
	"Дніпропетровська область":  "UA-12",
	"Донецька область":          "UA-14",
	"Житомирська область":       "UA-18",
	"Закарпатська область":      "UA-21",
	"Запорізька область":        "UA-23",
	"Івано-Франківська область": "UA-26",
	"Кіровоградська область":    "UA-35",
	"Луганська область":         "UA-09",
	"Львівська область":         "UA-46",
	"Миколаївська область":      "UA-48",
	"Одеська область":           "UA-51",
	"Полтавська область":        "UA-53",
	"Рівненська область":        "UA-56",
	"Сумська область":           "UA-59",
	"Тернопільська область":     "UA-61",
	"Харківська область":        "UA-63",
	"Херсонська область":        "UA-65",
	"Хмельницька область":       "UA-68",
	"Черкаська область":         "UA-71",
	"Чернівецька область":       "UA-77",
	"Чернігівська область":      "UA-74",
	"Автономна Республіка Крим": "UA-43",
	"м. Севастополь":            "UA-40",
}

// LoadTemplate reads the SVG template from path, or the embedded one when path is empty.
func LoadTemplate(path string) ([]byte, error) {
	if path == "" {
		return assetsFS.ReadFile("assets/regions_map.svg")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map template: %w", err)
	}
	return b, nil
}

// LoadShapes reads a JSON object {"region name": "shape id"} from path,
// or returns DefaultShapes when path is empty.
func LoadShapes(path string) (map[string]string, error) {
	if path == "" {
		return DefaultShapes, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read region map: %w", err)
	}
	shapes := make(map[string]string)
	if err := json.Unmarshal(b, &shapes); err != nil {
		return nil, fmt.Errorf("parse region map: %w", err)
	}
	if len(shapes) == 0 {
		return nil, fmt.Errorf("region map %s is empty", path)
	}
	return shapes, nil
}
