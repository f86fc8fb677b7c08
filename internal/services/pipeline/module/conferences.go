package module

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"qmtrends/internal/core/talk"
	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/logger"
	"qmtrends/internal/platform/validate"
)

// conferencesFile is the on-disk shape of the conference list
type conferencesFile struct {
	Conferences []talk.Conference `yaml:"conferences"`
}

// LoadConferences reads the conference list at path in file order
// entries without an event id are skipped with a warning; a repeated year is rejected
func LoadConferences(path string) ([]talk.Conference, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, perr.NotFoundf("conferences: %s does not exist", path)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "conferences: read %s", path)
	}
	return ParseConferences(b)
}

// ParseConferences decodes and validates a conference list
func ParseConferences(b []byte) ([]talk.Conference, error) {
	var f conferencesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeMalformed, "conferences: decode yaml")
	}

	log := logger.Named("conferences")
	seen := make(map[int]bool, len(f.Conferences))
	out := make([]talk.Conference, 0, len(f.Conferences))
	for i, c := range f.Conferences {
		c.IndicoID = strings.TrimSpace(c.IndicoID)
		if c.IndicoID == "" {
			log.Warn().Int("year", c.Year).Str("location", c.Location).Msg("conference has no event id, skipping")
			continue
		}
		if err := validate.Struct(c); err != nil {
			return nil, perr.WithOp(err, "conferences["+strconv.Itoa(i)+"]")
		}
		if seen[c.Year] {
			return nil, perr.Validationf("conferences: year %d listed twice", c.Year)
		}
		seen[c.Year] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, perr.Validationf("conferences: no entry with an event id")
	}
	return out, nil
}

// SelectYears keeps the conferences whose year is listed, in list order; no years keeps all
func SelectYears(confs []talk.Conference, years []int) ([]talk.Conference, error) {
	if len(years) == 0 {
		return confs, nil
	}
	byYear := make(map[int]talk.Conference, len(confs))
	for _, c := range confs {
		byYear[c.Year] = c
	}
	out := make([]talk.Conference, 0, len(years))
	for _, y := range years {
		c, ok := byYear[y]
		if !ok {
			return nil, perr.NotFoundf("conferences: no entry for %d", y)
		}
		out = append(out, c)
	}
	return out, nil
}
