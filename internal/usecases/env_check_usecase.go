package usecases

import "sort"

// NetworkPresence lists which settings of one network are set.
type NetworkPresence struct {
	Key    string
	Fields map[string]bool
}

// AggregatorPresence never carries the values themselves.
type AggregatorPresence struct {
	BasePresent     bool `json:"basePresent"`
	UsernamePresent bool `json:"usernamePresent"`
	PasswordPresent bool `json:"passwordPresent"`
}

type EnvReport struct {
	OK           bool                       `json:"ok"`
	Networks     map[string]map[string]bool `json:"networks"`
	Incomplete   []string                   `json:"incomplete,omitempty"`
	Aggregator   AggregatorPresence         `json:"aggregator"`
	SignerLoaded bool                       `json:"signerLoaded"`
	Pairs        int                        `json:"pairs"`
}

// EnvCheckUsecase reports configuration presence.
type EnvCheckUsecase struct {
	networks     []NetworkPresence
	aggregator   AggregatorPresence
	signerLoaded bool
	pairs        int
}

func NewEnvCheckUsecase(networks []NetworkPresence, aggregator AggregatorPresence, signerLoaded bool, pairs int) *EnvCheckUsecase {
	return &EnvCheckUsecase{networks: networks, aggregator: aggregator, signerLoaded: signerLoaded, pairs: pairs}
}

// Check is ok when at least one network is configured and every listed
// network is complete.
func (u *EnvCheckUsecase) Check() EnvReport {
	report := EnvReport{
		Networks:     make(map[string]map[string]bool, len(u.networks)),
		Aggregator:   u.aggregator,
		SignerLoaded: u.signerLoaded,
		Pairs:        u.pairs,
	}
	for _, n := range u.networks {
		fields := make(map[string]bool, len(n.Fields))
		complete := true
		for k, v := range n.Fields {
			fields[k] = v
			complete = complete && v
		}
		report.Networks[n.Key] = fields
		if !complete {
			report.Incomplete = append(report.Incomplete, n.Key)
		}
	}
	sort.Strings(report.Incomplete)
	report.OK = len(u.networks) > 0 && len(report.Incomplete) == 0
	return report
}
