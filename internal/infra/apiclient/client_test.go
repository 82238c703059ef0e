package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/moneytime-app/moneytime/internal/domain"
	"github.com/moneytime-app/moneytime/internal/infra/observability"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc, token string) (*Client, *observability.Tracer) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	tracer := observability.NewTracer(observability.DefaultTracerConfig())
	c := New(Config{BaseURL: srv.URL, Token: token, Now: func() time.Time { return fixedNow }}, tracer)
	return c, tracer
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestDailyBalance_SendsQueryAndToken(t *testing.T) {
	token := signedToken(t, fixedNow.Add(time.Hour))
	c, tracer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/daily-balance" {
			t.Errorf("path = %s, want /transactions/daily-balance", r.URL.Path)
		}
		if r.URL.Query().Get("year") != "2024" || r.URL.Query().Get("month") != "3" {
			t.Errorf("query = %s, want year=2024&month=3", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer "+token {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"date":"2024-03-05","balance":200.5,"status":"yellow"},{"date":"2024-03-06","balance":10,"status":null}]`)
	}, token)

	got, err := c.DailyBalance(context.Background(), 2024, 3)
	if err != nil {
		t.Fatalf("DailyBalance() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !got[0].Balance.Equal(decimal.RequireFromString("200.5")) || got[0].Status != domain.StatusYellow {
		t.Errorf("got[0] = %+v, want 200.5 yellow", got[0])
	}
	if got[1].Status != domain.StatusNone {
		t.Errorf("got[1].Status = %q, want none for null", got[1].Status)
	}
	if tracer.SpanCount() != 1 {
		t.Errorf("SpanCount() = %d, want 1", tracer.SpanCount())
	}
}

func TestExpiredToken_FailsFastWithoutRequest(t *testing.T) {
	called := false
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, signedToken(t, fixedNow.Add(-time.Minute)))

	_, err := c.ListTransactions(context.Background(), domain.TransactionFilter{})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
	if called {
		t.Error("server should not be called with an expired token")
	}
	if c.Token() != "" {
		t.Error("expired token should be cleared")
	}
}

func TestOpaqueTokenIsSent(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer not-a-jwt" {
			t.Errorf("Authorization = %q", got)
		}
		io.WriteString(w, `[]`)
	}, "not-a-jwt")

	if _, err := c.ListCategories(context.Background()); err != nil {
		t.Fatalf("ListCategories() error: %v", err)
	}
}

func TestUnauthorizedClearsToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"detail":"Could not validate credentials"}`)
	}, "opaque")

	_, err := c.ListTransactions(context.Background(), domain.TransactionFilter{})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("error = %v, want ErrUnauthorized", err)
	}
	if c.Token() != "" {
		t.Error("token should be cleared after 401")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    error
		message string
	}{
		{"detail string", 404, `{"detail":"Transaction not found"}`, domain.ErrNotFound, "Transaction not found"},
		{"message field", 400, `{"message":"bad amount"}`, domain.ErrRejected, "bad amount"},
		{"detail list", 422, `{"detail":[{"msg":"field required"}]}`, domain.ErrRejected, `[{"msg":"field required"}]`},
		{"plain text", 500, `boom`, nil, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}, "")

			_, err := c.GetTransaction(context.Background(), 7)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.message {
				t.Errorf("APIError = %d %q, want %d %q", apiErr.Status, apiErr.Message, tt.status, tt.message)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.want)
			}
		})
	}
}

func TestCreateTransaction_PostsJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transactions/" {
			t.Errorf("request = %s %s, want POST /transactions/", r.Method, r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["amount"] != 50.25 || body["type"] != "expense" {
			t.Errorf("body = %v, want numeric amount 50.25 and type expense", body)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":11,"description":"Mercado","amount":50.25,"type":"expense","transaction_date":"2024-03-10","created_at":"2024-03-10T12:00:00Z"}`)
	}, "")

	tx, err := c.CreateTransaction(context.Background(), domain.TransactionCreate{
		Description:     "Mercado",
		Amount:          decimal.RequireFromString("50.25"),
		Type:            domain.Expense,
		TransactionDate: "2024-03-10",
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error: %v", err)
	}
	if tx.ID != 11 {
		t.Errorf("ID = %d, want 11", tx.ID)
	}
}

func TestGetPreferences_NotConfigured(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, "")

	prefs, err := c.GetPreferences(context.Background())
	if err != nil || prefs != nil {
		t.Errorf("GetPreferences() = %v, %v, want nil, nil", prefs, err)
	}
}

func TestParseImage_Multipart(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/smart-parse-image" {
			t.Errorf("path = %s", r.URL.Path)
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b, _ := io.ReadAll(f)
		if hdr.Filename != "receipt.png" || string(b) != "pngdata" {
			t.Errorf("upload = %s %q", hdr.Filename, b)
		}
		io.WriteString(w, `{"description":"Farmácia","amount":12.9,"type":"expense","transaction_date":"2024-03-10","confidence":0.8}`)
	}, "")

	res, err := c.ParseImage(context.Background(), "receipt.png", strings.NewReader("pngdata"))
	if err != nil {
		t.Fatalf("ParseImage() error: %v", err)
	}
	if res.Description != "Farmácia" || res.Confidence != 0.8 {
		t.Errorf("result = %+v", res)
	}
}

func TestMaterializeRecurring(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["up_to_date"] != "2024-03-31" {
			t.Errorf("up_to_date = %q", body["up_to_date"])
		}
		io.WriteString(w, `{"created":3}`)
	}, "")

	res, err := c.MaterializeRecurring(context.Background(), "2024-03-31")
	if err != nil || res.Created != 3 {
		t.Errorf("MaterializeRecurring() = %+v, %v, want created 3", res, err)
	}
}
