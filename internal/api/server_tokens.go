package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/authscope/internal/inspect"
)

func registerTokenHandlers(api huma.API, svc Service) {
	type decodeOutput struct {
		Body inspect.TokenView
	}

	huma.Register(api, huma.Operation{OperationID: "decode-token", Method: http.MethodPost, Path: "/api/v1/tokens/decode", Summary: "Decode a JWT without verifying its signature", Tags: []string{"Tokens"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Token string `json:"token" required:"true" minLength:"1" doc:"Raw token or full Authorization header value (Bearer prefix optional)"`
			}
		}) (*decodeOutput, error) {
			tv, err := svc.DecodeToken(ctx, input.Body.Token)
			if err != nil {
				return nil, mapErr(err)
			}
			return &decodeOutput{Body: tv}, nil
		})
}
