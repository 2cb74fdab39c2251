package http_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/secmon-lab/dermis/pkg/controller/http"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/repository/memory"
	"github.com/secmon-lab/dermis/pkg/usecase"
)

type mockChat struct {
	resolveFn func(ctx context.Context, req *model.ResolveRequest) (*model.Resolution, error)
}

func (m *mockChat) Resolve(ctx context.Context, req *model.ResolveRequest) (*model.Resolution, error) {
	return m.resolveFn(ctx, req)
}

type mockSkin struct {
	analyzeFn func(ctx context.Context, userID types.UserID, images [][]byte) (*model.VisualSignal, error)
}

func (m *mockSkin) Analyze(ctx context.Context, userID types.UserID, images [][]byte) (*model.VisualSignal, error) {
	return m.analyzeFn(ctx, userID, images)
}

func newServer(t *testing.T, chat httpctrl.ChatUseCase, skin httpctrl.SkinUseCase, opts ...httpctrl.Options) *httpctrl.Server {
	t.Helper()
	srv, err := httpctrl.New(chat, skin, opts...)
	gt.NoError(t, err).Required()
	return srv
}

func TestNew_RequiresUseCases(t *testing.T) {
	uc := usecase.New(memory.New())

	_, err := httpctrl.New(nil, uc.Skin)
	gt.Error(t, err)
	_, err = httpctrl.New(uc.Chat, nil)
	gt.Error(t, err)
}

func TestHealth(t *testing.T) {
	uc := usecase.New(memory.New())
	srv := newServer(t, uc.Chat, uc.Skin)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	gt.Number(t, w.Code).Equal(http.StatusOK)
	gt.String(t, w.Body.String()).Contains(`"ok"`)
}

func TestChatHandler(t *testing.T) {
	t.Run("maps request and response", func(t *testing.T) {
		var got *model.ResolveRequest
		chat := &mockChat{resolveFn: func(ctx context.Context, req *model.ResolveRequest) (*model.Resolution, error) {
			got = req
			return &model.Resolution{
				ConversationID: "conv-1",
				Message:        "Try this gel.",
				Products:       []*model.ProductRecord{{ID: "gel-01", Name: "Oil Control Gel", Price: 22}},
				Title:          "Gel for oily skin",
				State:          types.ResolutionSuccess,
				Rounds:         2,
				SideEffects: []*model.SideEffect{
					{CallID: "c1", Capability: types.CapabilityUpdateCart, Resource: "cart:user-1/gel-01"},
				},
			}, nil
		}}
		srv := newServer(t, chat, &mockSkin{})

		body := `{"conversation_id":"conv-1","messages":[{"role":"user","content":"oily skin gel?"}],"images":["` +
			base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) + `"]}`
		req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
		req.Header.Set("X-User-ID", "user-1")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		gt.Number(t, w.Code).Equal(http.StatusOK)
		gt.Value(t, got.UserID).Equal(types.UserID("user-1"))
		gt.Value(t, got.ConversationID).Equal(types.ConversationID("conv-1"))
		gt.Array(t, got.Messages).Length(1)
		gt.Value(t, got.Images).Equal([][]byte{{1, 2, 3}})

		var resp map[string]any
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp["message"]).Equal(any("Try this gel."))
		gt.Value(t, resp["state"]).Equal(any("success"))
		gt.Value(t, resp["title"]).Equal(any("Gel for oily skin"))
		gt.Array(t, resp["products"].([]any)).Length(1)
		gt.Array(t, resp["side_effects"].([]any)).Length(1)
	})

	t.Run("malformed body", func(t *testing.T) {
		srv := newServer(t, &mockChat{}, &mockSkin{})
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{")))
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("unknown role", func(t *testing.T) {
		srv := newServer(t, &mockChat{}, &mockSkin{})
		body := `{"messages":[{"role":"wizard","content":"hi"}]}`
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("invalid request from use case", func(t *testing.T) {
		uc := usecase.New(memory.New())
		srv := newServer(t, uc.Chat, uc.Skin)
		body := `{"messages":[{"role":"assistant","content":"hello"}]}`
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("internal error hides details", func(t *testing.T) {
		chat := &mockChat{resolveFn: func(ctx context.Context, req *model.ResolveRequest) (*model.Resolution, error) {
			return nil, errors.New("secret internals")
		}}
		srv := newServer(t, chat, &mockSkin{})
		body := `{"messages":[{"role":"user","content":"hi"}]}`
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
		gt.Number(t, w.Code).Equal(http.StatusInternalServerError)
		gt.Bool(t, strings.Contains(w.Body.String(), "secret internals")).False()
	})

	t.Run("degraded reply without provider", func(t *testing.T) {
		uc := usecase.New(memory.New())
		srv := newServer(t, uc.Chat, uc.Skin)
		body := `{"messages":[{"role":"user","content":"hello"}]}`
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
		gt.Number(t, w.Code).Equal(http.StatusOK)

		var resp map[string]any
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp["state"]).Equal(any("provider_timeout"))
		gt.String(t, resp["message"].(string)).NotEqual("")
		gt.String(t, resp["title"].(string)).Equal("hello")
	})
}

func TestSkinAnalyzeHandler(t *testing.T) {
	uc := usecase.New(memory.New())
	srv := newServer(t, uc.Chat, uc.Skin)
	flat := bytes.Repeat([]byte{128}, 2048)

	t.Run("json body", func(t *testing.T) {
		body := `{"images":["` + base64.StdEncoding.EncodeToString(flat) + `"]}`
		req := httptest.NewRequest(http.MethodPost, "/api/skin/analyze", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		gt.Number(t, w.Code).Equal(http.StatusOK)
		var signal model.VisualSignal
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &signal)).Required()
		gt.Value(t, signal.DetectedType).Equal(types.SkinTypeNormal)
		gt.Number(t, signal.Confidence).Equal(0.6)
	})

	t.Run("multipart body", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for _, name := range []string{"a.jpg", "b.jpg"} {
			fw, err := mw.CreateFormFile("image", name)
			gt.NoError(t, err).Required()
			_, err = fw.Write(flat)
			gt.NoError(t, err).Required()
		}
		gt.NoError(t, mw.Close()).Required()

		req := httptest.NewRequest(http.MethodPost, "/api/skin/analyze", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)

		gt.Number(t, w.Code).Equal(http.StatusOK)
		var signal model.VisualSignal
		gt.NoError(t, json.Unmarshal(w.Body.Bytes(), &signal)).Required()
		gt.Number(t, signal.Confidence).Equal(0.7)
	})

	t.Run("no images", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/skin/analyze", strings.NewReader(`{"images":[]}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("unsupported content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/skin/analyze", strings.NewReader("raw"))
		req.Header.Set("Content-Type", "text/plain")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
	})

	t.Run("body limit", func(t *testing.T) {
		srv := newServer(t, uc.Chat, uc.Skin, httpctrl.WithMaxBodyBytes(64))
		body := `{"images":["` + base64.StdEncoding.EncodeToString(flat) + `"]}`
		req := httptest.NewRequest(http.MethodPost, "/api/skin/analyze", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, req)
		gt.Number(t, w.Code).Equal(http.StatusBadRequest)
	})
}
