package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"hk_bids/i18n"
	"hk_bids/models"
	"hk_bids/services"
	"hk_bids/session"
)

const pageTemplate = "page.html"

func (s *Server) handleHealth(c *gin.Context) {
	if s.deps.Health == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	status := s.deps.Health.Check(c.Request.Context())
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// newView resolves the language and fills the parts common to every page.
func (s *Server) newView(c *gin.Context, sess *session.Session, query url.Values) pageView {
	loc := s.deps.Catalog.Pick(query.Get("lang"), sess.Language(), c.GetHeader("Accept-Language"))
	if query.Get("lang") != "" && loc.Code == query.Get("lang") {
		sess.SetLanguage(loc.Code)
	}
	return pageView{
		L:              loc,
		Languages:      s.deps.Catalog.Languages(),
		LanguagePrompt: i18n.LanguagePrompt,
		LogoURL:        s.deps.LogoURL,
		Auth:           query.Get("auth"),
		Bid:            query.Get("bid"),
		Step:           formatStep(s.deps.Step),
		Company:        sess.Company(),
	}
}

// authorize runs the access check for this request. It renders the deny or
// error page itself and returns false when the request must stop.
func (s *Server) authorize(c *gin.Context, sess *session.Session, view *pageView, query url.Values) bool {
	grant, err := s.deps.Guard.Check(c.Request.Context(), query)
	if err != nil {
		if errors.Is(err, models.ErrAccessDenied) {
			view.Denied = true
			c.HTML(http.StatusForbidden, pageTemplate, view)
			return false
		}
		s.logEvent(sess.ID(), models.LogLevelError, "access check failed: %v", err)
		s.renderNotice(c, view, http.StatusServiceUnavailable, noticeError, "gateway_error")
		return false
	}
	sess.Grant(grant.BatchID)
	return true
}

func (s *Server) renderNotice(c *gin.Context, view *pageView, status int, kind, key string) {
	view.NoticeKind = kind
	view.Notice = view.L.T(key)
	c.HTML(status, pageTemplate, view)
}

func (s *Server) handleIndex(c *gin.Context) {
	sess := currentSession(c)
	query := c.Request.URL.Query()
	view := s.newView(c, sess, query)

	if !s.authorize(c, sess, &view, query) {
		return
	}

	switch sess.State() {
	case session.StateAwaitingCompany:
		view.ShowCompany = true
		c.HTML(http.StatusOK, pageTemplate, view)
	case session.StateSubmitted:
		s.renderSubmitted(c, sess, &view)
	default:
		s.renderForm(c, sess, &view, nil, http.StatusOK)
	}
}

func (s *Server) handleCompany(c *gin.Context) {
	sess := currentSession(c)
	query := formQuery(c)
	view := s.newView(c, sess, query)

	if !s.authorize(c, sess, &view, query) {
		return
	}

	err := sess.SetCompany(c.PostForm("company"))
	switch {
	case errors.Is(err, models.ErrCompanyRequired):
		view.ShowCompany = true
		s.renderNotice(c, &view, http.StatusUnprocessableEntity, noticeWarning, "company_name_placeholder")
		return
	case errors.Is(err, models.ErrAlreadySubmitted):
	case err != nil:
		c.AbortWithStatus(http.StatusBadRequest)
		return
	default:
		s.logEvent(sess.ID(), models.LogLevelInfo, "company set to %q", sess.Company())
	}

	c.Redirect(http.StatusSeeOther, "/?"+string(view.LinkQuery(view.L.Code)))
}

func (s *Server) handleSubmit(c *gin.Context) {
	sess := currentSession(c)
	query := formQuery(c)
	view := s.newView(c, sess, query)

	if !s.authorize(c, sess, &view, query) {
		return
	}

	switch sess.State() {
	case session.StateSubmitted:
		s.renderSubmitted(c, sess, &view)
		return
	case session.StateAwaitingCompany:
		view.ShowCompany = true
		s.renderNotice(c, &view, http.StatusUnprocessableEntity, noticeWarning, "company_name_placeholder")
		return
	}

	rows, ok := s.loadRows(c, sess, &view)
	if !ok {
		return
	}

	values := make(map[string]string, len(rows))
	lines := make([]session.Line, len(rows))
	invalid := false
	for i, r := range rows {
		field := bidField(i)
		raw := c.PostForm(field)
		values[field] = raw
		lines[i] = session.Line{UnitCode: r.UnitCode(), BidID: r.Request.BidID}
		amount, err := session.ParseAmount(raw, s.deps.Step)
		if err != nil {
			invalid = true
			continue
		}
		lines[i].Amount = amount
	}
	if invalid {
		view.Groups = GroupByArea(s.enrich(c, rows), values)
		view.ShowForm = true
		s.renderNotice(c, &view, http.StatusUnprocessableEntity, noticeWarning, "invalid_bid")
		return
	}

	sub, err := sess.Submit(c.Request.Context(), lines, s.deps.Now().In(s.deps.Location), s.deps.Submissions)
	if err != nil {
		view.Groups = GroupByArea(s.enrich(c, rows), values)
		view.ShowForm = true
		switch {
		case errors.Is(err, models.ErrNoBidsPlaced):
			s.renderNotice(c, &view, http.StatusUnprocessableEntity, noticeWarning, "no_bids")
		case errors.Is(err, models.ErrInvalidBid):
			s.renderNotice(c, &view, http.StatusUnprocessableEntity, noticeWarning, "invalid_bid")
		case errors.Is(err, models.ErrAlreadySubmitted), errors.Is(err, models.ErrSubmitInProgress):
			view.ShowForm = false
			s.renderNotice(c, &view, http.StatusConflict, noticeWarning, "already_submitted")
		default:
			s.logEvent(sess.ID(), models.LogLevelError, "submit failed: %v", err)
			s.renderNotice(c, &view, http.StatusServiceUnavailable, noticeError, "gateway_error")
		}
		return
	}

	s.logEvent(sess.ID(), models.LogLevelInfo, "submitted %d bids as %s", len(sub.Bids), sub.ID)
	view.Submitted = true
	view.Submission = sub
	view.ReceiptURL = receiptURL(sub.ID.String(), view)
	s.renderNotice(c, &view, http.StatusOK, noticeSuccess, "submit_success")
}

func (s *Server) handleReceipt(c *gin.Context) {
	sess := currentSession(c)
	raw := strings.TrimSuffix(c.Param("file"), ".xlsx")
	id, err := uuid.Parse(raw)
	if err != nil || sess.SubmissionID() != id.String() {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	sub, err := s.deps.Submissions.Receipt(c.Request.Context(), id)
	if err != nil {
		zap.S().Errorf("Receipt %s: %v", id, err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if sub == nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="bids-%s.xlsx"`, id))
	if err := services.WriteReceiptXLSX(c.Writer, sub); err != nil {
		zap.S().Errorf("Receipt %s: %v", id, err)
	}
}

func (s *Server) loadRows(c *gin.Context, sess *session.Session, view *pageView) ([]models.Row, bool) {
	rows, err := s.deps.Reference.Load(c.Request.Context(), sess.BatchID())
	if err != nil {
		s.logEvent(sess.ID(), models.LogLevelError, "load rows failed: %v", err)
		s.renderNotice(c, view, http.StatusServiceUnavailable, noticeError, "gateway_error")
		return nil, false
	}
	return rows, true
}

func (s *Server) enrich(c *gin.Context, rows []models.Row) []models.Row {
	if s.deps.Enricher == nil {
		return rows
	}
	return s.deps.Enricher.EnrichRows(c.Request.Context(), rows)
}

func (s *Server) renderForm(c *gin.Context, sess *session.Session, view *pageView, values map[string]string, status int) {
	rows, ok := s.loadRows(c, sess, view)
	if !ok {
		return
	}
	view.Groups = GroupByArea(s.enrich(c, rows), values)
	view.ShowForm = true
	c.HTML(status, pageTemplate, view)
}

func (s *Server) renderSubmitted(c *gin.Context, sess *session.Session, view *pageView) {
	view.Submitted = true
	if id, err := uuid.Parse(sess.SubmissionID()); err == nil {
		if sub, err := s.deps.Submissions.Receipt(c.Request.Context(), id); err == nil && sub != nil {
			view.Submission = sub
			view.ReceiptURL = receiptURL(sub.ID.String(), *view)
		}
	}
	s.renderNotice(c, view, http.StatusOK, noticeSuccess, "already_submitted")
}

// receiptURL carries the link query so the download resolves to the same
// batch session.
func receiptURL(id string, view pageView) string {
	u := "/receipt/" + id + ".xlsx"
	if q := view.LinkQuery(""); q != "" {
		u += "?" + string(q)
	}
	return u
}

// formQuery merges the URL query with posted form values so link
// credentials survive a POST.
func formQuery(c *gin.Context) url.Values {
	if err := c.Request.ParseForm(); err != nil {
		return c.Request.URL.Query()
	}
	return c.Request.Form
}
