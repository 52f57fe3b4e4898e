package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/types"
)

// CreateShare creates an empty share owned by the caller.
//
//	@Summary	Create share
//	@Tags		shares
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.CreateShareRequest	true	"share"
//	@Success	201		{object}	types.ShareInfo
//	@Failure	400		{object}	ErrorResponse
//	@Failure	409		{object}	ErrorResponse
//	@Router		/api/v1/shares [post]
func CreateShare(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req types.CreateShareRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := services(c).Shares.CreateShare(c.Request.Context(), user, &req)
	if err != nil {
		renderError(c, err, "create share failed")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListShares lists the caller's live shares.
//
//	@Summary	List shares
//	@Tags		shares
//	@Produce	json
//	@Success	200	{object}	types.ListSharesResponse
//	@Router		/api/v1/shares [get]
func ListShares(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	resp, err := services(c).Shares.ListShares(c.Request.Context(), user)
	if err != nil {
		renderError(c, err, "list shares failed")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetShare returns a share with its files.
//
//	@Summary	Share detail
//	@Tags		shares
//	@Produce	json
//	@Param		shareId	path		string	true	"share id"
//	@Success	200		{object}	types.ShareDetail
//	@Failure	404		{object}	ErrorResponse
//	@Router		/api/v1/shares/{shareId} [get]
func GetShare(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	resp, err := services(c).Shares.GetShare(c.Request.Context(), user, c.Param("shareId"))
	if err != nil {
		renderError(c, err, "get share failed")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateShareSettings patches title, visibility and access policy.
//
//	@Summary	Update share settings
//	@Tags		shares
//	@Accept		json
//	@Produce	json
//	@Param		shareId	path		string							true	"share id"
//	@Param		body	body		types.UpdateShareSettingsRequest	true	"patch"
//	@Success	200		{object}	types.ShareInfo
//	@Failure	409		{object}	ErrorResponse
//	@Router		/api/v1/shares/{shareId}/settings [patch]
func UpdateShareSettings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req types.UpdateShareSettingsRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := services(c).Shares.UpdateSettings(c.Request.Context(), user, c.Param("shareId"), &req)
	if err != nil {
		renderError(c, err, "update share settings failed")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DeleteShare soft deletes a share and frees the quota of its files.
//
//	@Summary	Delete share
//	@Tags		shares
//	@Param		shareId	path	string	true	"share id"
//	@Success	204
//	@Router		/api/v1/shares/{shareId} [delete]
func DeleteShare(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := services(c).Shares.DeleteShare(c.Request.Context(), user, c.Param("shareId")); err != nil {
		renderError(c, err, "delete share failed")
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateDownloadLink issues a single-use download signature to the owner.
//
//	@Summary	Create download link
//	@Tags		shares
//	@Accept		json
//	@Produce	json
//	@Param		shareId	path		string							true	"share id"
//	@Param		body	body		types.CreateDownloadLinkRequest	false	"options"
//	@Success	201		{object}	types.DownloadLinkResponse
//	@Router		/api/v1/shares/{shareId}/download-links [post]
func CreateDownloadLink(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req types.CreateDownloadLinkRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	resp, err := services(c).Shares.CreateDownloadLink(c.Request.Context(), user, c.Param("shareId"), &req)
	if err != nil {
		renderError(c, err, "create download link failed")
		return
	}

	c.JSON(http.StatusCreated, resp)
}
