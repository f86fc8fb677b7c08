package indico

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"qmtrends/internal/core/normalize"
	"qmtrends/internal/core/session"
	"qmtrends/internal/core/talk"
	perr "qmtrends/internal/platform/errors"
	"qmtrends/internal/platform/logger"
	"qmtrends/internal/platform/validate"
)

// Getter fetches a path relative to an Indico instance; *Client satisfies it
type Getter interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// baseRouter is a Getter that can point at a different instance; *Client satisfies it
type baseRouter interface {
	ForBase(base string) Getter
}

// DefaultTitleKeywords are matched against the event title to catch ids pointing at the wrong event
var DefaultTitleKeywords = []string{"quark matter", "qm"}

// Source turns an event export into talk records
type Source struct {
	get           Getter
	classify      *session.Classifier
	titleKeywords []string
	log           logger.Logger
}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithTitleKeywords replaces the event title check; no keywords disables it
func WithTitleKeywords(kw ...string) SourceOption {
	return func(s *Source) { s.titleKeywords = kw }
}

// NewSource builds a Source over g using c to type and filter contributions
func NewSource(g Getter, c *session.Classifier, opts ...SourceOption) *Source {
	s := &Source{
		get:           g,
		classify:      c,
		titleKeywords: DefaultTitleKeywords,
		log:           *logger.Named("indico"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FetchTalks downloads and decodes one conference
// ceremonial contributions are dropped and each remaining one yields a record for its first speaker
func (s *Source) FetchTalks(ctx context.Context, conf talk.Conference) ([]talk.Record, error) {
	if err := validate.Struct(conf); err != nil {
		return nil, err
	}
	g := s.get
	if r, ok := g.(baseRouter); ok && conf.BaseURL != "" {
		g = r.ForBase(conf.BaseURL)
	}
	body, err := g.Get(ctx, ExportPath(conf.IndicoID))
	if err != nil {
		return nil, err
	}
	ev, err := decodeExport(body)
	if err != nil {
		return nil, perr.WithOp(err, "indico.decode")
	}
	if !s.titleMatches(ev.Title, conf.Year) {
		return nil, perr.Newf(perr.ErrorCodeValidation, "event %s is titled %q, not a matching conference", conf.IndicoID, ev.Title)
	}

	log := logger.C(ctx).With().Str("component", "indico").Str("event", conf.IndicoID).Logger()

	out := make([]talk.Record, 0, len(ev.Contributions))
	var excluded, invalid int
	for i, c := range ev.Contributions {
		title := StripHTML(c.Title)
		label := StripHTML(c.sessionLabel())
		if s.classify.Excluded(label, title) {
			excluded++
			continue
		}
		rec := talk.Record{
			Year:             conf.Year,
			ConferenceID:     conf.IndicoID,
			SessionLabel:     label,
			PresentationType: s.classify.Classify(c.Type, label, title),
			Title:            title,
			Abstract:         StripHTML(c.Description),
		}
		if p, ok := c.presenter(); ok {
			rec.SpeakerName = StripHTML(p.displayName())
			rec.RawAffiliation = StripHTML(p.Affiliation)
		}
		if err := validate.Struct(rec); err != nil {
			invalid++
			log.Warn().Err(err).Int("index", i).Str("title", title).Msg("skipping invalid contribution")
			continue
		}
		out = append(out, rec)
	}

	log.Info().
		Int("contributions", len(ev.Contributions)).
		Int("talks", len(out)).
		Int("excluded", excluded).
		Int("invalid", invalid).
		Msg("indico event decoded")
	return out, nil
}

func decodeExport(body []byte) (event, error) {
	var resp exportResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return event{}, perr.Wrap(err, perr.ErrorCodeJSON, "decode indico export")
	}
	if err := validate.Struct(resp); err != nil {
		return event{}, perr.Wrap(err, perr.ErrorCodeNotFound, "indico export has no event")
	}
	return resp.Results[0], nil
}

// titleMatches accepts titles naming the series, or the year when the series name is abbreviated away
func (s *Source) titleMatches(title string, year int) bool {
	if len(s.titleKeywords) == 0 {
		return true
	}
	// keywords match whole tokens so "qm" does not fire inside an unrelated word
	t := " " + normalize.Key(title) + " "
	for _, kw := range s.titleKeywords {
		if k := normalize.Key(kw); k != "" && strings.Contains(t, " "+k+" ") {
			return true
		}
	}
	return strings.Contains(title, strconv.Itoa(year))
}
