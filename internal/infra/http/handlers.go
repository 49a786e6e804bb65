package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"lineage/internal/domain"
	"lineage/internal/infra/interchange"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type flingResponse struct {
	ID          string   `json:"id"`
	Descendants []string `json:"descendants"`
}

type taintsResponse struct {
	ID     string                `json:"id"`
	Direct []interchange.NodeDoc `json:"direct"`
	Source []interchange.NodeDoc `json:"indirect_sources,omitempty"`
}

type markRequest struct {
	Claimant    string `json:"claimant"`
	Description string `json:"description"`
}

type actorsResponse struct {
	Actors []interchange.ActorDoc `json:"actors"`
}

type dominatesResponse struct {
	A         string `json:"a"`
	B         string `json:"b"`
	Dominates bool   `json:"dominates"`
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodPost && c.Request.URL.Path == "/v1/collections:report" {
		s.handleReport(c)
		return
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func (s *Server) handleReport(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if !s.enforceRateLimit(c, routeReport, viewerFrom(c)) {
		return
	}
	col, _, err := s.codec.DecodeReader(http.MaxBytesReader(c.Writer, c.Request.Body, maxReportBytes))
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := s.lineage.Report(c.Request.Context(), col)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleGraph(c *gin.Context) {
	viewer := viewerFrom(c)
	if !s.enforceRateLimit(c, routeGraph, viewer) {
		return
	}
	settings, err := parseTraversal(c)
	if err != nil {
		writeError(c, err)
		return
	}
	seeds := append([]string{c.Param("oid")}, c.QueryArray("seed")...)
	dag, err := s.lineage.GetGraph(c.Request.Context(), seeds, viewer, settings)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.codec.ViewDocument(dag))
}

func (s *Server) handleFling(c *gin.Context) {
	viewer := viewerFrom(c)
	if !s.enforceRateLimit(c, routeFling, viewer) {
		return
	}
	settings, err := parseTraversal(c)
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("direction") == "" {
		settings.Direction = domain.DirectionDescendants
	}
	id := c.Param("oid")
	out, err := s.lineage.Fling(c.Request.Context(), id, viewer, settings)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, flingResponse{ID: id, Descendants: out})
}

func (s *Server) handleTaints(c *gin.Context) {
	viewer := viewerFrom(c)
	if !s.enforceRateLimit(c, routeTaints, viewer) {
		return
	}
	id := c.Param("oid")
	direct, err := s.lineage.DirectTaints(c.Request.Context(), id, viewer)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	out := taintsResponse{ID: id, Direct: nodeDocs(direct)}
	if indirect, _ := strconv.ParseBool(c.Query("indirect")); indirect {
		sources, err := s.lineage.IndirectTaintSources(c.Request.Context(), id, viewer)
		if err != nil {
			s.writeServiceError(c, err)
			return
		}
		out.Source = nodeDocs(sources)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleMark(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	if !s.enforceRateLimit(c, routeMark, viewerFrom(c)) {
		return
	}
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	taint, err := s.lineage.Mark(c.Request.Context(), c.Param("oid"), req.Claimant, req.Description)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, nodeDocs([]*domain.Node{taint})[0])
}

func (s *Server) handleSearch(c *gin.Context) {
	viewer := viewerFrom(c)
	if !s.enforceRateLimit(c, routeSearch, viewer) {
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	dag, err := s.lineage.Search(c.Request.Context(), c.Query("q"), c.Query("key"), limit, viewer)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.codec.ViewDocument(dag))
}

func (s *Server) handleActors(c *gin.Context) {
	if !s.enforceRateLimit(c, routeActors, viewerFrom(c)) {
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	actors, err := s.lineage.Actors(c.Request.Context(), limit)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	out := actorsResponse{Actors: make([]interchange.ActorDoc, 0, len(actors))}
	for _, a := range actors {
		out.Actors = append(out.Actors, interchange.ActorDoc{ID: a.ID, Name: a.Name, Created: a.Created, Type: a.Type})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleWorkflows(c *gin.Context) {
	viewer := viewerFrom(c)
	if !s.enforceRateLimit(c, routeWorkflows, viewer) {
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	dag, err := s.lineage.Workflows(c.Request.Context(), limit, viewer)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.codec.ViewDocument(dag))
}

func (s *Server) handleWorkflowMembers(c *gin.Context) {
	viewer := viewerFrom(c)
	if !s.enforceRateLimit(c, routeWorkflows, viewer) {
		return
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		writeError(c, err)
		return
	}
	dag, err := s.lineage.WorkflowMembers(c.Request.Context(), c.Param("workflow_id"), limit, viewer)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.codec.ViewDocument(dag))
}

func (s *Server) handleDominates(c *gin.Context) {
	if !s.enforceRateLimit(c, routePrivilege, viewerFrom(c)) {
		return
	}
	a, b := strings.TrimSpace(c.Query("a")), strings.TrimSpace(c.Query("b"))
	if a == "" || b == "" {
		writeError(c, fmt.Errorf("%w: both a and b are required", domain.ErrInvalidInput))
		return
	}
	ok, err := s.lineage.Dominates(c.Request.Context(), a, b)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dominatesResponse{A: a, B: b, Dominates: ok})
}

func parseTraversal(c *gin.Context) (domain.TraversalSettings, error) {
	settings := domain.DefaultTraversal()
	dir, ok := domain.ParseDirection(c.Query("direction"))
	if !ok {
		return settings, fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidInput, c.Query("direction"))
	}
	settings.Direction = dir
	depth, err := queryInt(c, "depth", domain.Unlimited)
	if err != nil {
		return settings, err
	}
	if depth < domain.Unlimited {
		return settings, fmt.Errorf("%w: depth must be -1 or greater", domain.ErrInvalidInput)
	}
	settings.MaxDepth = depth
	if settings.MaxNodes, err = queryInt(c, "max_nodes", 0); err != nil {
		return settings, err
	}
	for _, raw := range splitList(c.Query("kinds")) {
		kind, ok := domain.ParseNodeKind(raw)
		if !ok {
			return settings, fmt.Errorf("%w: unknown node kind %q", domain.ErrInvalidInput, raw)
		}
		settings.NodeKinds = append(settings.NodeKinds, kind)
	}
	for _, raw := range splitList(c.Query("edge_types")) {
		typ, ok := domain.ParseEdgeType(raw)
		if !ok {
			return settings, fmt.Errorf("%w: unknown edge type %q", domain.ErrInvalidInput, raw)
		}
		settings.EdgeTypes = append(settings.EdgeTypes, typ)
	}
	if v := c.Query("npes"); v != "" {
		if settings.IncludeNPEs, err = strconv.ParseBool(v); err != nil {
			return settings, fmt.Errorf("%w: npes must be a boolean", domain.ErrInvalidInput)
		}
	}
	if v := c.Query("edges"); v != "" {
		if settings.IncludeEdges, err = strconv.ParseBool(v); err != nil {
			return settings, fmt.Errorf("%w: edges must be a boolean", domain.ErrInvalidInput)
		}
	}
	return settings, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
	}
	return n, nil
}

func splitList(v string) []string {
	return lo.FilterMap(strings.Split(v, ","), func(item string, _ int) (string, bool) {
		item = strings.TrimSpace(item)
		return item, item != ""
	})
}

func nodeDocs(nodes []*domain.Node) []interchange.NodeDoc {
	col := domain.NewCollection()
	for _, n := range nodes {
		_ = col.PutNode(n)
	}
	doc := interchange.NewCodec(nil).ToDocument(col)
	return doc.Nodes
}

func (s *Server) writeServiceError(c *gin.Context, err error) {
	status := writeError(c, err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
}

func writeError(c *gin.Context, err error) int {
	status, code := http.StatusInternalServerError, "INTERNAL"
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		status, code = http.StatusRequestEntityTooLarge, "DOCUMENT_TOO_LARGE"
	case errors.Is(err, domain.ErrMalformedInterchangeDocument):
		status, code = http.StatusBadRequest, "MALFORMED_DOCUMENT"
	case errors.Is(err, domain.ErrMetadataTooLarge):
		status, code = http.StatusBadRequest, "METADATA_TOO_LARGE"
	case errors.Is(err, domain.ErrInvalidNode):
		status, code = http.StatusBadRequest, "INVALID_NODE"
	case errors.Is(err, domain.ErrInvalidEdge), errors.Is(err, domain.ErrInvalidNonProvenanceEdge):
		status, code = http.StatusBadRequest, "INVALID_EDGE"
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrDanglingReference):
		status, code = http.StatusUnprocessableEntity, "DANGLING_REFERENCE"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrLatticeInconsistency):
		status, code = http.StatusInternalServerError, "LATTICE_INCONSISTENCY"
	}
	writeErrorCode(c, status, code, err.Error())
	return status
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
