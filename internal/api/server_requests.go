package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/authscope/internal/har"
	"github.com/dgnsrekt/authscope/internal/inspect"
	"github.com/dgnsrekt/authscope/internal/store"
	"github.com/dgnsrekt/authscope/internal/types"
)

const maxImportBytes = 64 << 20

func registerRequestHandlers(api huma.API, svc Service) {
	type listRequestsOutput struct {
		Body struct {
			Count    int                   `json:"count"`
			Requests []inspect.RequestView `json:"requests"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-requests", Method: http.MethodGet, Path: "/api/v1/requests", Summary: "List tracked requests, most recent first", Tags: []string{"Requests"}},
		func(ctx context.Context, input *struct{}) (*listRequestsOutput, error) {
			views, err := svc.ListRequests(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listRequestsOutput{}
			out.Body.Count = len(views)
			out.Body.Requests = views
			return out, nil
		})

	type requestOutput struct {
		Body inspect.RequestView
	}

	huma.Register(api, huma.Operation{OperationID: "get-request", Method: http.MethodGet, Path: "/api/v1/requests/detail", Summary: "Get one tracked request with its headers", Tags: []string{"Requests"}},
		func(ctx context.Context, input *struct {
			ID string `query:"id" required:"true" doc:"Request ID as returned by list-requests"`
		}) (*requestOutput, error) {
			view, err := svc.GetRequest(ctx, input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &requestOutput{Body: view}, nil
		})

	type statsOutput struct {
		Body store.Stats
	}

	huma.Register(api, huma.Operation{OperationID: "get-stats", Method: http.MethodGet, Path: "/api/v1/stats", Summary: "Tracked request count and last update time", Tags: []string{"Requests"}},
		func(ctx context.Context, input *struct{}) (*statsOutput, error) {
			st, err := svc.Stats(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			return &statsOutput{Body: st}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "clear-requests", Method: http.MethodDelete, Path: "/api/v1/requests", Summary: "Remove all tracked requests", Tags: []string{"Requests"}, DefaultStatus: http.StatusNoContent},
		func(ctx context.Context, input *struct{}) (*struct{}, error) {
			if err := svc.ClearRequests(ctx); err != nil {
				return nil, mapErr(err)
			}
			return nil, nil
		})

	type importOutput struct {
		Body struct {
			Entries  int `json:"entries"`
			Tracked  int `json:"tracked"`
			StoreLen int `json:"store_size"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "import-har", Method: http.MethodPost, Path: "/api/v1/requests/import", Summary: "Import the entries of a HAR document", Tags: []string{"Requests"}, MaxBodyBytes: maxImportBytes},
		func(ctx context.Context, input *struct {
			RawBody []byte `contentType:"application/json"`
		}) (*importOutput, error) {
			recs, err := har.Parse(bytes.NewReader(input.RawBody))
			if err != nil {
				return nil, huma.Error400BadRequest("invalid HAR document", err)
			}
			tracked, err := svc.Import(ctx, recs)
			if err != nil {
				return nil, mapErr(err)
			}
			st, err := svc.Stats(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &importOutput{}
			out.Body.Entries = len(recs)
			out.Body.Tracked = tracked
			out.Body.StoreLen = st.Count
			return out, nil
		})

	type tabsOutput struct {
		Body struct {
			Tabs []types.TabInfo `json:"tabs"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List attached browser tabs", Tags: []string{"Capture"}},
		func(ctx context.Context, input *struct{}) (*tabsOutput, error) {
			tabs, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &tabsOutput{}
			out.Body.Tabs = tabs
			return out, nil
		})
}
