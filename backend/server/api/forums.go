package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/Rodvdev/gainz-factory-sub003/backend/models"
	"github.com/Rodvdev/gainz-factory-sub003/lib/utils"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

func (a *API) forumRoutes(r *mux.Router) {
	r.HandleFunc("/api/forums", public(a.listForums)).Methods(http.MethodGet)
	r.HandleFunc("/api/forums", roles(a.createForum, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/api/forums/{id}", public(a.getForum)).Methods(http.MethodGet)
	r.HandleFunc("/api/forums/{id}", roles(a.updateForum, models.RoleCoach, models.RoleAdmin)).Methods(http.MethodPatch, http.MethodPut)
	r.HandleFunc("/api/forums/{id}", roles(a.deleteForum, models.RoleAdmin)).Methods(http.MethodDelete)

	r.HandleFunc("/api/forums/{id}/topics", public(a.listTopics)).Methods(http.MethodGet)
	r.HandleFunc("/api/forums/{id}/topics", authed(a.createTopic)).Methods(http.MethodPost)
	r.HandleFunc("/api/topics/{id}", public(a.getTopic)).Methods(http.MethodGet)
	r.HandleFunc("/api/topics/{id}", authed(a.deleteTopic)).Methods(http.MethodDelete)

	r.HandleFunc("/api/topics/{id}/replies", public(a.listReplies)).Methods(http.MethodGet)
	r.HandleFunc("/api/topics/{id}/replies", authed(a.createReply)).Methods(http.MethodPost)
	r.HandleFunc("/api/replies/{id}", authed(a.deleteReply)).Methods(http.MethodDelete)
}

type forumInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
	IsActive    *bool  `json:"isActive"`
}

func (a *API) listForums(w http.ResponseWriter, r *http.Request) error {
	forums, err := a.Store.ListForums(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, forums)
	return nil
}

func (a *API) createForum(w http.ResponseWriter, r *http.Request) error {
	var in forumInput
	if err := decode(r, &in); err != nil {
		return err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := utils.ValidateStruct(in); err != nil {
		return err
	}
	now := time.Now()
	forum := &models.Forum{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		CreatedBy:   userID(r),
		IsActive:    in.IsActive == nil || *in.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Store.AddForum(r.Context(), forum); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, forum)
	return nil
}

func (a *API) getForum(w http.ResponseWriter, r *http.Request) error {
	forum, err := a.Store.FindForum(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, forum)
	return nil
}

func (a *API) updateForum(w http.ResponseWriter, r *http.Request) error {
	forum, err := a.Store.FindForum(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	in := forumInput{Title: forum.Title, Description: forum.Description}
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := utils.ValidateStruct(in); err != nil {
		return err
	}
	forum.Title, forum.Description = strings.TrimSpace(in.Title), in.Description
	if in.IsActive != nil {
		forum.IsActive = *in.IsActive
	}
	if err := a.Store.UpdateForum(r.Context(), forum); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, forum)
	return nil
}

// deleteForum refuses to delete a forum that still has topics.
func (a *API) deleteForum(w http.ResponseWriter, r *http.Request) error {
	id := pathID(r)
	if _, err := a.Store.FindForum(r.Context(), id); err != nil {
		return err
	}
	n, err := a.Store.CountTopics(r.Context(), id)
	if err != nil {
		return err
	}
	if n > 0 {
		return badRequest("cannot delete a forum that has topics")
	}
	if err := a.Store.DeleteForum(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type topicInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required,max=10000"`
	IsPinned bool   `json:"isPinned"`
}

func (a *API) listTopics(w http.ResponseWriter, r *http.Request) error {
	if _, err := a.Store.FindForum(r.Context(), pathID(r)); err != nil {
		return err
	}
	topics, err := a.Store.ListTopics(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, topics)
	return nil
}

func (a *API) createTopic(w http.ResponseWriter, r *http.Request) error {
	forum, err := a.Store.FindForum(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	if !forum.IsActive {
		return badRequest("forum is closed")
	}
	var in topicInput
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := utils.ValidateStruct(in); err != nil {
		return err
	}
	now := time.Now()
	topic := &models.ForumTopic{
		ID:        uuid.NewString(),
		ForumID:   forum.ID,
		UserID:    userID(r),
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		IsPinned:  in.IsPinned && hasRole(r.Context(), models.RoleCoach, models.RoleAdmin),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Store.AddTopic(r.Context(), topic); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, topic)
	return nil
}

func (a *API) getTopic(w http.ResponseWriter, r *http.Request) error {
	topic, err := a.Store.FindTopic(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, topic)
	return nil
}

// deleteTopic lets the author or an admin delete a topic with its replies.
func (a *API) deleteTopic(w http.ResponseWriter, r *http.Request) error {
	topic, err := a.Store.FindTopic(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	if topic.UserID != userID(r) && !hasRole(r.Context(), models.RoleAdmin) {
		return errForbidden
	}
	if err := a.Store.DeleteTopic(r.Context(), topic.ID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (a *API) listReplies(w http.ResponseWriter, r *http.Request) error {
	if _, err := a.Store.FindTopic(r.Context(), pathID(r)); err != nil {
		return err
	}
	replies, err := a.Store.ListReplies(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, replies)
	return nil
}

func (a *API) createReply(w http.ResponseWriter, r *http.Request) error {
	topic, err := a.Store.FindTopic(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	if topic.IsLocked {
		return badRequest("topic is locked")
	}
	var in struct {
		Content string `json:"content" validate:"required,max=10000"`
	}
	if err := decode(r, &in); err != nil {
		return err
	}
	if err := utils.ValidateStruct(in); err != nil {
		return err
	}
	now := time.Now()
	reply := &models.ForumReply{
		ID:        uuid.NewString(),
		TopicID:   topic.ID,
		UserID:    userID(r),
		Content:   in.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.Store.AddReply(r.Context(), reply); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, reply)
	return nil
}

func (a *API) deleteReply(w http.ResponseWriter, r *http.Request) error {
	reply, err := a.Store.FindReply(r.Context(), pathID(r))
	if err != nil {
		return err
	}
	if reply.UserID != userID(r) && !hasRole(r.Context(), models.RoleAdmin) {
		return errForbidden
	}
	if err := a.Store.DeleteReply(r.Context(), reply.ID); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
