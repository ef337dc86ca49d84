package dispatcher

import (
	"context"
	"unicode/utf8"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

const queryExpired = "query is too old and response timeout expired or query ID is invalid"

// answerQuery marks an open query answered. Every query is answered at most once.
func (s *Server) answerQuery(open map[string]*openQuery, id string) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	q, ok := open[id]
	if !ok || q.answered {
		return botapi.InvalidArgument(queryExpired)
	}
	q.answered = true
	return nil
}

func (s *Server) handleAnswerCallbackQuery(_ context.Context, call *Call) (any, error) {
	p := call.Params
	id := p.String("callback_query_id")
	if id == "" {
		return nil, botapi.InvalidArgument("callback_query_id is empty")
	}
	text := p.String("text")
	if utf8.RuneCountInString(text) > 200 {
		return nil, botapi.InvalidArgument("MESSAGE_TOO_LONG")
	}
	if err := s.answerQuery(s.callbacks, id); err != nil {
		return nil, err
	}
	call.Response.SetCallbackAnswer(botapi.CallbackAnswer{
		CallbackQueryID: id,
		Text:            text,
		ShowAlert:       p.Bool("show_alert"),
		URL:             p.String("url"),
		CacheTime:       p.IntOr("cache_time", 0),
	})
	return true, nil
}

// maxInlineResults bounds answerInlineQuery.
const maxInlineResults = 50

func (s *Server) handleAnswerInlineQuery(_ context.Context, call *Call) (any, error) {
	p := call.Params
	id := p.String("inline_query_id")
	if id == "" {
		return nil, botapi.InvalidArgument("inline_query_id is empty")
	}
	var results []map[string]any
	if _, err := p.Decode("results", &results); err != nil {
		return nil, botapi.InvalidArgument("can't parse inline query results JSON object")
	}
	if len(results) > maxInlineResults {
		return nil, botapi.InvalidArgument("RESULTS_TOO_MUCH")
	}
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		typ, _ := r["type"].(string)
		rid, _ := r["id"].(string)
		if typ == "" || rid == "" {
			return nil, botapi.InvalidArgument("RESULT_TYPE_INVALID")
		}
		if seen[rid] {
			return nil, botapi.InvalidArgument("RESULT_ID_DUPLICATE")
		}
		seen[rid] = true
	}
	if err := s.answerQuery(s.inline, id); err != nil {
		return nil, err
	}
	if results == nil {
		results = []map[string]any{}
	}
	call.Response.SetInlineAnswer(botapi.InlineAnswer{
		InlineQueryID: id,
		Results:       results,
		CacheTime:     p.IntOr("cache_time", 300),
		IsPersonal:    p.Bool("is_personal"),
		NextOffset:    p.String("next_offset"),
	})
	return true, nil
}
