package api

import (
	"fmt"
	"net/url"

	"vrptw/internal/model"
)

func validateSolveRequest(req *model.SolveRequest) error {
	if req.TimeLimitS < 0 {
		return fmt.Errorf("timeLimitSec must be >= 0")
	}
	if req.Customers < 0 {
		return fmt.Errorf("customers must be >= 0")
	}
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callbackUrl must be an absolute http(s) URL")
		}
		if !req.Async {
			return fmt.Errorf("callbackUrl requires async=true")
		}
	}
	return nil
}
