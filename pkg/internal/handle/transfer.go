package handle

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/context"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/middleware"
)

// CreateUploadIntent reserves quota and returns a single-use upload URL.
//
//	@Summary	Create upload intent
//	@Tags		transfer
//	@Accept		json
//	@Produce	json
//	@Param		shareId	path		string							true	"share id"
//	@Param		body	body		types.CreateUploadIntentRequest	true	"expected files"
//	@Success	201		{object}	types.UploadIntentResponse
//	@Failure	403		{object}	ErrorResponse	"quota exceeded"
//	@Router		/api/v1/shares/{shareId}/upload-intents [post]
func CreateUploadIntent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req types.CreateUploadIntentRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := services(c).Uploads.CreateIntent(c.Request.Context(), user, c.Param("shareId"), &req)
	if err != nil {
		renderError(c, err, "create upload intent failed")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetUploadIntent reports the state of an upload intent.
//
//	@Summary	Upload intent state
//	@Tags		transfer
//	@Produce	json
//	@Param		signatureId	path		string	true	"intent id"
//	@Success	200			{object}	types.UploadIntentStatus
//	@Router		/api/v1/upload-intents/{signatureId} [get]
func GetUploadIntent(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	resp, err := services(c).Uploads.IntentStatus(c.Request.Context(), user, c.Param("signatureId"))
	if err != nil {
		renderError(c, err, "upload intent status failed")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Upload receives the files of an upload signature as multipart/form-data.
//
//	@Summary	Upload files
//	@Tags		capability
//	@Accept		multipart/form-data
//	@Produce	json
//	@Param		signature	path		string	true	"upload signature"
//	@Param		file		formData	file	true	"file, repeatable"
//	@Success	201			{object}	types.UploadResult
//	@Failure	404			{object}	ErrorResponse	"unknown or used signature"
//	@Failure	410			{object}	ErrorResponse	"expired signature"
//	@Failure	413			{object}	ErrorResponse	"more files or bytes than declared"
//	@Router		/u/{signature} [post]
func Upload(c *gin.Context) {
	reader, err := c.Request.MultipartReader()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "expected a multipart/form-data body"})
		return
	}

	resp, err := services(c).Uploads.Upload(c.Request.Context(), c.Param("signature"), &multipartParts{r: reader})
	if err != nil {
		renderError(c, err, "upload failed")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Download redeems a download signature and streams the file, or a zip when
// the grant covers several files.
//
//	@Summary	Download
//	@Tags		capability
//	@Produce	application/octet-stream
//	@Param		signature			path	string	true	"download signature"
//	@Param		file				query	string	false	"restrict to one file"
//	@Param		password			query	string	false	"share password"
//	@Param		X-Share-Password	header	string	false	"share password"
//	@Success	200
//	@Failure	401	{object}	ErrorResponse	"password required"
//	@Failure	403	{object}	ErrorResponse	"wrong password or limit reached"
//	@Failure	404	{object}	ErrorResponse
//	@Failure	410	{object}	ErrorResponse	"signature or share expired"
//	@Router		/d/{signature} [get]
func Download(c *gin.Context) {
	svc := services(c).Downloads

	grant, err := svc.Authorize(c.Request.Context(), service.DownloadRequest{
		Signature: c.Param("signature"),
		Password:  sharePassword(c),
		FileID:    c.Query("file"),
		Requester: requester(c),
	})
	if err != nil {
		renderError(c, err, "download denied")
		return
	}

	h := c.Writer.Header()
	h.Set("Content-Type", grant.ContentType())
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": grant.FileName()}))
	h.Set("Cache-Control", "no-store")

	if n := grant.ContentLength(); n >= 0 {
		h.Set("Content-Length", strconv.FormatInt(n, 10))
	}

	c.Status(http.StatusOK)

	// the download is already counted; a broken stream can only be logged
	if err := svc.Write(c.Request.Context(), c.Writer, grant); err != nil {
		logger := context.WithTraceContext(c.Request.Context(), *log.Logger())
		logger.Error().Err(err).Str("share_id", grant.Share.ID).Msg("download stream failed")
		_ = c.Error(err)
	}
}

// Visit opens a share page by custom slug or id and hands out a fresh download link.
//
//	@Summary	Visit share
//	@Tags		capability
//	@Produce	json
//	@Param		slug				path		string	true	"custom slug or share id"
//	@Param		password			query		string	false	"share password"
//	@Param		X-Share-Password	header		string	false	"share password"
//	@Success	200					{object}	types.VisitResponse
//	@Failure	401					{object}	ErrorResponse	"password required"
//	@Failure	404					{object}	ErrorResponse
//	@Router		/s/{slug} [get]
func Visit(c *gin.Context) {
	req := service.VisitRequest{
		SlugOrID:  c.Param("slug"),
		Password:  sharePassword(c),
		Requester: requester(c),
	}

	if id, ok := middleware.GetIdentity(c); ok {
		req.RequesterID = id.UserID
	}

	resp, err := services(c).Visits.Visit(c.Request.Context(), req)
	if err != nil {
		renderError(c, err, "visit denied")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, resp)
}
