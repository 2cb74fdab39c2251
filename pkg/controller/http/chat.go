package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/usecase"
	"github.com/secmon-lab/dermis/pkg/utils/errutil"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []chatMessage `json:"messages"`
	// Images are base64 encoded photo bytes
	Images []string `json:"images"`
}

type sideEffectResponse struct {
	CallID     string `json:"call_id"`
	Capability string `json:"capability"`
	Resource   string `json:"resource"`
	Summary    string `json:"summary,omitempty"`
}

type chatResponse struct {
	ConversationID string               `json:"conversation_id"`
	Message        string               `json:"message"`
	Products       []map[string]any     `json:"products"`
	Title          string               `json:"title,omitempty"`
	State          string               `json:"state"`
	Rounds         int                  `json:"rounds"`
	SideEffects    []sideEffectResponse `json:"side_effects,omitempty"`
	Signal         *model.VisualSignal  `json:"signal,omitempty"`
}

func (req *chatRequest) toModel(userID types.UserID) (*model.ResolveRequest, error) {
	out := &model.ResolveRequest{
		UserID:         userID,
		ConversationID: types.ConversationID(req.ConversationID),
		Messages:       make([]*model.Message, 0, len(req.Messages)),
	}

	for i, m := range req.Messages {
		role, err := types.ParseRole(m.Role)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid message role", goerr.V("index", i))
		}
		out.Messages = append(out.Messages, &model.Message{Role: role, Content: m.Content})
	}

	images, err := decodeImages(req.Images)
	if err != nil {
		return nil, err
	}
	out.Images = images

	return out, nil
}

func decodeImages(encoded []string) ([][]byte, error) {
	images := make([][]byte, 0, len(encoded))
	for i, s := range encoded {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, goerr.Wrap(err, "image is not valid base64", goerr.V("index", i))
		}
		images = append(images, data)
	}
	return images, nil
}

func newChatResponse(res *model.Resolution) *chatResponse {
	resp := &chatResponse{
		ConversationID: res.ConversationID.String(),
		Message:        res.Message,
		Products:       make([]map[string]any, len(res.Products)),
		Title:          res.Title,
		State:          res.State.String(),
		Rounds:         res.Rounds,
		Signal:         res.Signal,
	}
	for i, p := range res.Products {
		resp.Products[i] = p.Summary()
	}
	for _, se := range res.SideEffects {
		resp.SideEffects = append(resp.SideEffects, sideEffectResponse{
			CallID:     se.CallID.String(),
			Capability: se.Capability.String(),
			Resource:   se.Resource,
			Summary:    se.Summary,
		})
	}
	return resp
}

func chatHandler(uc ChatUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode chat request"), http.StatusBadRequest)
			return
		}

		input, err := req.toModel(userIDFrom(ctx))
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		res, err := uc.Resolve(ctx, input)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, usecase.ErrInvalidRequest) {
				status = http.StatusBadRequest
			}
			errutil.HandleHTTP(ctx, w, err, status)
			return
		}

		writeJSON(w, r, http.StatusOK, newChatResponse(res))
	}
}
