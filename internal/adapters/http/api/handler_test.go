package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goshield/goshield/internal/adapters/http/api"
	"github.com/goshield/goshield/internal/app"
	"github.com/goshield/goshield/internal/domain/model"
	"github.com/goshield/goshield/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type testServer struct {
	svc    *app.Service
	server *httptest.Server
}

func newTestServer() *testServer {
	svc := app.New()
	_ = svc.Start(context.Background())
	h := api.NewHandler(svc)
	return &testServer{
		svc:    svc,
		server: httptest.NewServer(h.Routes()),
	}
}

func (ts *testServer) close() {
	ts.server.Close()
	ts.svc.Stop(context.Background())
}

func (ts *testServer) do(method, path string, body any) (*http.Response, []byte) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	if err != nil {
		panic(err)
	}
	resp, err := ts.server.Client().Do(req)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func activateBody() map[string]string {
	return map[string]string{
		"driver_id":    "driver-9",
		"ride_id":      "ride-42",
		"passenger_id": "pass-7",
		"route_ref":    "route-downtown",
	}
}

func sliceBody(seq uint64, text string) map[string]any {
	return map[string]any{
		"seq":         seq,
		"payload":     []byte(text),
		"captured_at": time.Date(2026, 3, 12, 14, 0, 0, 0, time.UTC),
		"lat":         37.77,
		"lon":         -122.42,
	}
}

func (ts *testServer) activate() string {
	resp, body := ts.do(http.MethodPost, "/sessions", activateBody())
	if resp.StatusCode != http.StatusCreated {
		panic("activation failed: " + string(body))
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		panic(err)
	}
	return out.SessionID
}

func TestSessionEndpoints(t *testing.T) {
	Convey("Given a running API server", t, func() {
		ts := newTestServer()
		defer ts.close()

		Convey("When activating a session", func() {
			resp, body := ts.do(http.MethodPost, "/sessions", activateBody())

			Convey("Then it returns 201 with a session id", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				var out struct {
					SessionID string `json:"session_id"`
				}
				So(json.Unmarshal(body, &out), ShouldBeNil)
				So(out.SessionID, ShouldNotBeEmpty)
			})

			Convey("And a duplicate activation returns 409", func() {
				resp, _ := ts.do(http.MethodPost, "/sessions", activateBody())
				So(resp.StatusCode, ShouldEqual, http.StatusConflict)
			})
		})

		Convey("When activating with missing identity fields", func() {
			resp, _ := ts.do(http.MethodPost, "/sessions", map[string]string{"ride_id": "r"})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When closing a session", func() {
			id := ts.activate()
			resp, _ := ts.do(http.MethodDelete, "/sessions/"+id, nil)

			Convey("Then it returns 204 and later slices get 410", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
				resp, _ := ts.do(http.MethodPost, "/sessions/"+id+"/slices", sliceBody(0, "hello there"))
				So(resp.StatusCode, ShouldEqual, http.StatusGone)
			})
		})

		Convey("When closing an unknown session", func() {
			resp, _ := ts.do(http.MethodDelete, "/sessions/nope", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestSliceEndpoint(t *testing.T) {
	Convey("Given an active session", t, func() {
		ts := newTestServer()
		defer ts.close()
		id := ts.activate()

		Convey("When submitting a calm slice", func() {
			resp, body := ts.do(http.MethodPost, "/sessions/"+id+"/slices", sliceBody(0, "nice weather today"))

			Convey("Then it returns the committed assessment", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var a model.RiskAssessment
				So(json.Unmarshal(body, &a), ShouldBeNil)
				So(a.Level, ShouldEqual, model.RiskLow)
				So(a.Seq, ShouldEqual, 0)
				So(a.Transcript, ShouldEqual, "nice weather today")
			})

			Convey("And a duplicate seq reports stale without an error status", func() {
				resp, body := ts.do(http.MethodPost, "/sessions/"+id+"/slices", sliceBody(0, "nice weather today"))
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var out struct {
					Status string `json:"status"`
				}
				So(json.Unmarshal(body, &out), ShouldBeNil)
				So(out.Status, ShouldEqual, "stale")
			})
		})

		Convey("When submitting to an unknown session", func() {
			resp, _ := ts.do(http.MethodPost, "/sessions/nope/slices", sliceBody(0, "hello there"))
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When submitting without a payload", func() {
			resp, _ := ts.do(http.MethodPost, "/sessions/"+id+"/slices", map[string]any{"seq": 0})
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestReadEndpoints(t *testing.T) {
	Convey("Given a session with threatening audio", t, func() {
		ts := newTestServer()
		defer ts.close()
		id := ts.activate()

		resp, _ := ts.do(http.MethodPost, "/sessions/"+id+"/slices", sliceBody(0, "shut up or I will hurt you"))
		So(resp.StatusCode, ShouldEqual, http.StatusOK)

		Convey("When fetching the summary", func() {
			resp, body := ts.do(http.MethodGet, "/sessions/"+id+"/summary", nil)

			Convey("Then the summary shows the escalation", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var sum model.SessionSummary
				So(json.Unmarshal(body, &sum), ShouldBeNil)
				So(sum.Escalated, ShouldBeTrue)
				So(sum.TotalRiskEvents, ShouldEqual, 1)
			})
		})

		Convey("When fetching assessments", func() {
			resp, body := ts.do(http.MethodGet, "/sessions/"+id+"/assessments", nil)

			Convey("Then the committed assessment is listed", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var list []*model.RiskAssessment
				So(json.Unmarshal(body, &list), ShouldBeNil)
				So(len(list), ShouldEqual, 1)
				So(list[0].Level, ShouldEqual, model.RiskMedium)
			})
		})

		Convey("When fetching open incidents", func() {
			resp, body := ts.do(http.MethodGet, "/incidents", nil)

			Convey("Then the escalation's incident is open", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var list []*model.Incident
				So(json.Unmarshal(body, &list), ShouldBeNil)
				So(len(list), ShouldEqual, 1)
				So(list[0].Status, ShouldEqual, model.IncidentOpen)
			})
		})

		Convey("When fetching stats", func() {
			resp, body := ts.do(http.MethodGet, "/stats", nil)

			Convey("Then counters are populated", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var st app.Stats
				So(json.Unmarshal(body, &st), ShouldBeNil)
				So(st.ActiveSessions, ShouldEqual, 1)
				So(st.OpenIncidents, ShouldEqual, 1)
			})
		})

		Convey("When scraping health metrics", func() {
			resp, body := ts.do(http.MethodGet, "/healthz", nil)

			Convey("Then the Prometheus exposition is served", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(string(body), ShouldContainSubstring, "goshield")
			})
		})
	})
}
