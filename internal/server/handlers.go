package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/felixgeelhaar/pmteam/internal/assistant"
	"github.com/felixgeelhaar/pmteam/internal/errors"
	"github.com/felixgeelhaar/pmteam/internal/mutation"
	"github.com/felixgeelhaar/pmteam/internal/plan"
	"github.com/felixgeelhaar/pmteam/internal/store"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.NewBadRequestError(err.Error())
	}
	return nil
}

func runRef(r *http.Request) store.RunRef {
	return store.RunRef{Project: chi.URLParam(r, "project"), Run: chi.URLParam(r, "run")}
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.deps.Service.Store().ListProjects(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Name == "" {
		s.writeError(w, r, errors.NewBadRequestError("name is required"))
		return
	}
	p, err := s.deps.Service.Store().CreateProject(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.deps.Service.Store().ListRuns(r.Context(), chi.URLParam(r, "project"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

type importRunRequest struct {
	Initiative string     `json:"initiative"`
	Plan       *plan.Plan `json:"plan"`
	Starter    bool       `json:"starter"`
}

func (s *Server) importRun(w http.ResponseWriter, r *http.Request) {
	var req importRunRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	p := req.Plan
	switch {
	case req.Starter && p != nil:
		s.writeError(w, r, errors.NewBadRequestError("plan and starter are mutually exclusive"))
		return
	case req.Starter:
		p = plan.Starter(req.Initiative, time.Now())
	case p == nil:
		s.writeError(w, r, errors.NewBadRequestError("plan or starter is required"))
		return
	}
	initiative := req.Initiative
	if initiative == "" {
		initiative = p.Initiative
	}

	run, err := s.deps.Service.ImportRun(r.Context(), chi.URLParam(r, "project"), initiative, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) getPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Service.Plan(r.Context(), runRef(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Service.GetConversation(r.Context(), runRef(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("tail"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, errors.NewBadRequestError("tail must be a non-negative integer"))
			return
		}
		c = c.Tail(n)
	}
	writeJSON(w, http.StatusOK, c)
}

type sendMessageRequest struct {
	Message string          `json:"message"`
	Mode    string          `json:"mode"`
	Payload json.RawMessage `json:"payload"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	mode, err := mutation.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := mutation.Decode(mode, req.Payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Service.SendMessage(r.Context(), assistant.SendRequest{
		Ref:      runRef(r),
		Message:  req.Message,
		Mutation: m,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) diffRuns(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		s.writeError(w, r, errors.NewBadRequestError("from and to run ids are required"))
		return
	}

	d, err := s.deps.Service.Diff(r.Context(),
		store.RunRef{Project: project, Run: from},
		store.RunRef{Project: project, Run: to})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
