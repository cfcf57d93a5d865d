package httpapi

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"docpipeline/internal/extraction"
	"docpipeline/internal/indexing"
	"docpipeline/internal/metadata"
	"docpipeline/internal/model"
	"docpipeline/internal/store"
)

// --- Documents (spec §6: UploadDocument, GetDocumentStatus, ReprocessDocument) ---

type uploadDocumentRequest struct {
	DisplayName   string `json:"display_name"`
	EntityLabel   string `json:"entity_label"`
	URI           string `json:"uri"`
	ContentBase64 string `json:"content_base64"`
	CreatedBy     string `json:"created_by"`
}

func (s *Server) handleUploadDocument(c echo.Context) error {
	var req uploadDocumentRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.DisplayName == "" {
		return respondWithError(c, http.StatusBadRequest, "display_name is required")
	}

	uri := req.URI
	if uri == "" {
		if req.ContentBase64 == "" {
			return respondWithError(c, http.StatusBadRequest, "either uri or content_base64 is required")
		}
		data, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			return respondWithError(c, http.StatusBadRequest, "content_base64 is not valid base64")
		}
		saved, err := s.uploads.Save(req.DisplayName, data)
		if err != nil {
			return respondWithError(c, http.StatusBadRequest, err.Error())
		}
		uri = saved
	}

	doc, err := s.store.CreateDocument(c.Request().Context(), model.SourceDocument{
		DisplayName: req.DisplayName,
		SourceURI:   uri,
		EntityLabel: req.EntityLabel,
	})
	if err != nil {
		return respondWithError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]any{"document_id": doc.ID})
}

func (s *Server) handleGetDocumentStatus(c echo.Context) error {
	doc, err := s.store.GetDocument(c.Request().Context(), c.Param("documentID"))
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":             doc.Status,
		"status_detail":      doc.StatusDetail,
		"metadata_extracted": doc.MetadataExtracted,
	})
}

func (s *Server) handleReprocessDocument(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("documentID")
	if _, err := s.store.GetDocument(ctx, id); err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	if err := s.store.UpdateDocumentStatus(ctx, id, model.StatusPending, ""); err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// --- Collections (spec §6: CreateCollection, AddDocumentsToCollection) ---

type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

func (s *Server) handleCreateCollection(c echo.Context) error {
	var req createCollectionRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	id := uuid.NewString()
	col, err := s.store.CreateCollection(c.Request().Context(), model.Collection{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		CreatedBy:       req.CreatedBy,
		VectorIndexName: indexing.SanitizeIndexName(req.Name, id),
	})
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]any{"collection_id": col.ID})
}

type addDocumentsRequest struct {
	DocumentIDs []string `json:"document_ids"`
}

func (s *Server) handleAddDocumentsToCollection(c echo.Context) error {
	ctx := c.Request().Context()
	collectionID := c.Param("collectionID")
	var req addDocumentsRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if _, err := s.store.GetCollection(ctx, collectionID); err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}

	count := 0
	for _, docID := range req.DocumentIDs {
		if _, err := s.store.GetDocument(ctx, docID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return respondWithError(c, http.StatusInternalServerError, err.Error())
		}
		if err := s.store.AddMembership(ctx, collectionID, docID); err != nil {
			return respondWithError(c, http.StatusInternalServerError, err.Error())
		}
		count++
	}
	return c.JSON(http.StatusOK, map[string]any{"membership_count": count})
}

// --- Indexing jobs (spec §6: StartIndexingJob, GetIndexingJob) ---

type startIndexingJobRequest struct {
	DocumentIDs []string              `json:"document_ids"`
	Type        model.IndexingJobType `json:"type"`
}

func (s *Server) handleStartIndexingJob(c echo.Context) error {
	collectionID := c.Param("collectionID")
	var req startIndexingJobRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Type == "" {
		req.Type = model.IndexingJobIndex
	}
	job, err := s.indexing.CreateJob(c.Request().Context(), collectionID, req.DocumentIDs, req.Type)
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	s.notifier.NotifyIndexingJobCreated(c.Request().Context(), job.ID, collectionID)
	return c.JSON(http.StatusAccepted, map[string]any{"job_id": job.ID})
}

func (s *Server) handleGetIndexingJob(c echo.Context) error {
	job, err := s.store.GetIndexingJob(c.Request().Context(), c.Param("jobID"))
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, job)
}

// --- Metadata configurations and groups (spec §6, §4.10) ---

type createConfigurationRequest struct {
	Name             string                 `json:"name"`
	Description      string                 `json:"description"`
	DataType         model.DataType         `json:"data_type"`
	ExtractionPrompt string                 `json:"extraction_prompt"`
	ValidationRules  *model.ValidationRules `json:"validation_rules"`
	CreatedBy        string                 `json:"created_by"`
	GroupIDs         []string               `json:"group_ids"`
}

func (s *Server) handleCreateMetadataConfiguration(c echo.Context) error {
	var req createConfigurationRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	cfg, err := s.metadata.CreateConfiguration(c.Request().Context(), model.MetadataConfiguration{
		Name:             req.Name,
		Description:      req.Description,
		DataType:         req.DataType,
		ExtractionPrompt: req.ExtractionPrompt,
		ValidationRules:  req.ValidationRules,
		IsActive:         true,
		CreatedBy:        req.CreatedBy,
	}, req.GroupIDs)
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusCreated, cfg)
}

type updateConfigurationRequest struct {
	Name             *string                `json:"name"`
	Description      *string                `json:"description"`
	ExtractionPrompt *string                `json:"extraction_prompt"`
	ValidationRules  *model.ValidationRules `json:"validation_rules"`
	IsActive         *bool                  `json:"is_active"`
}

func (s *Server) handleUpdateMetadataConfiguration(c echo.Context) error {
	var req updateConfigurationRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	cfg, err := s.metadata.UpdateConfiguration(c.Request().Context(), c.Param("configID"), metadata.ConfigurationPatch{
		Name:             req.Name,
		Description:      req.Description,
		ExtractionPrompt: req.ExtractionPrompt,
		ValidationRules:  req.ValidationRules,
		IsActive:         req.IsActive,
	})
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleDeleteMetadataConfiguration(c echo.Context) error {
	if err := s.metadata.DeleteConfiguration(c.Request().Context(), c.Param("configID")); err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type createGroupRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Color       string   `json:"color"`
	Tags        []string `json:"tags"`
	CreatedBy   string   `json:"created_by"`
}

func (s *Server) handleCreateMetadataGroup(c echo.Context) error {
	var req createGroupRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	grp, err := s.metadata.CreateGroup(c.Request().Context(), model.MetadataGroup{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Tags:        req.Tags,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusCreated, grp)
}

type updateGroupRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Color       *string  `json:"color"`
	Tags        []string `json:"tags"`
}

func (s *Server) handleUpdateMetadataGroup(c echo.Context) error {
	var req updateGroupRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	grp, err := s.metadata.UpdateGroup(c.Request().Context(), c.Param("groupID"), metadata.GroupPatch{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		Tags:        req.Tags,
	})
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, grp)
}

func (s *Server) handleDeleteMetadataGroup(c echo.Context) error {
	if err := s.metadata.DeleteGroup(c.Request().Context(), c.Param("groupID")); err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type reorderConfigurationRequest struct {
	NewOrder int `json:"new_order"`
}

func (s *Server) handleReorderConfigurationInGroup(c echo.Context) error {
	var req reorderConfigurationRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	err := s.metadata.ReorderConfigInGroup(c.Request().Context(), c.Param("groupID"), c.Param("configID"), req.NewOrder)
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

type cloneGroupRequest struct {
	NewName  string `json:"new_name"`
	ClonedBy string `json:"cloned_by"`
}

func (s *Server) handleCloneMetadataGroup(c echo.Context) error {
	var req cloneGroupRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	grp, err := s.metadata.CloneGroup(c.Request().Context(), c.Param("groupID"), req.NewName, req.ClonedBy)
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusCreated, grp)
}

// --- Extraction jobs (spec §6: StartExtractionJob, GetExtractionJob, StopExtractionJob, ListExtractedMetadata) ---

type startExtractionJobRequest struct {
	GroupID   string `json:"group_id"`
	CreatedBy string `json:"created_by"`
}

func (s *Server) handleStartExtractionJob(c echo.Context) error {
	collectionID := c.Param("collectionID")
	var req startExtractionJobRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "Invalid request body")
	}
	job, err := s.extraction.CreateJob(c.Request().Context(), collectionID, req.GroupID, req.CreatedBy)
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	s.notifier.NotifyExtractionJobCreated(c.Request().Context(), job.ID, collectionID)
	return c.JSON(http.StatusAccepted, map[string]any{"job_id": job.ID})
}

func (s *Server) handleGetExtractionJob(c echo.Context) error {
	job, err := s.store.GetExtractionJob(c.Request().Context(), c.Param("jobID"))
	if err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, job)
}

func (s *Server) handleStopExtractionJob(c echo.Context) error {
	if err := s.store.StopExtractionJob(c.Request().Context(), c.Param("jobID")); err != nil {
		return respondWithError(c, statusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListExtractedMetadata(c echo.Context) error {
	collectionID := c.Param("collectionID")
	filter := store.ExtractedMetadataFilter{
		DocumentID:   c.QueryParam("document_id"),
		GroupID:      c.QueryParam("group_id"),
		MetadataName: c.QueryParam("metadata_name"),
	}
	rows, err := s.store.ListExtractedMetadata(c.Request().Context(), collectionID, filter)
	if err != nil {
		return respondWithError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"rows": rows})
}

// --- response helpers ---

func respondWithError(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

// statusFromError maps the pipeline's sentinel errors to HTTP status codes.
// Anything unrecognized is a 500 — callers never see internal detail beyond
// the error string already logged upstream.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, metadata.ErrUnknownGroup), errors.Is(err, metadata.ErrNoGroups), errors.Is(err, extraction.ErrNoEligibleDocuments):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrDefaultGroupProtected),
		errors.Is(err, metadata.ErrDuplicateName),
		errors.Is(err, metadata.ErrCannotRenameDefaultGroup):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
