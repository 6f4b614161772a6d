package report

import (
	"encoding/json"

	"github.com/munnerz/goautoneg"
	"sigs.k8s.io/yaml"
)

type mediaType struct {
	Type, SubType string
}

func (m mediaType) String() string {
	return m.Type + "/" + m.SubType
}

// Encoder renders a report for one content type.
type Encoder func(r *Report) ([]byte, error)

var jsonType = mediaType{"application", "json"}

var encoders = map[mediaType]Encoder{
	jsonType: func(r *Report) ([]byte, error) {
		return json.Marshal(r)
	},
	{"application", "yaml"}: func(r *Report) ([]byte, error) {
		return yaml.Marshal(r)
	},
}

// EncoderFor picks an encoder from an Accept header. An empty header means JSON; nil is
// returned when nothing acceptable is offered.
func EncoderFor(accept string) (string, Encoder) {
	if len(accept) == 0 {
		return jsonType.String(), encoders[jsonType]
	}

	clauses := goautoneg.ParseAccept(accept)
	for _, clause := range clauses {
		if clause.Type == "*" && clause.SubType == "*" {
			return jsonType.String(), encoders[jsonType]
		}
		for k, v := range encoders {
			switch {
			case clause.Type == k.Type && clause.SubType == k.SubType,
				clause.Type == k.Type && clause.SubType == "*" && k == jsonType:
				return k.String(), v
			}
		}
	}

	return "", nil
}
