package dispatcher

import (
	"context"

	"github.com/nextlevelbuilder/botsim/internal/store"
	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

func (s *Server) handleSetPassportDataErrors(_ context.Context, call *Call) (any, error) {
	p := call.Params
	u, err := s.resolveUser(p, "user_id")
	if err != nil {
		return nil, err
	}
	var errs []botapi.PassportElementError
	if _, err := p.Decode("errors", &errs); err != nil {
		return nil, botapi.InvalidArgument("can't parse passport element errors JSON object")
	}
	for _, e := range errs {
		if !store.ValidPassportSource(e.Source) {
			return nil, botapi.InvalidArgument("PASSPORT_ELEMENT_SOURCE_INVALID")
		}
		if e.Type == "" || e.Message == "" {
			return nil, botapi.InvalidArgument("passport element error must name a type and a message")
		}
	}
	s.Passport.SetErrors(u.ID, errs)
	return true, nil
}
