package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPlans returns the plan catalog. A matching If-None-Match gets 304.
//
//	@Summary	Plan catalog
//	@Tags		quota
//	@Produce	json
//	@Param		If-None-Match	header	string	false	"ETag of a cached catalog"
//	@Success	200	{array}	model.Plan
//	@Success	304
//	@Router		/api/v1/plans [get]
func ListPlans(c *gin.Context) {
	catalog, err := services(c).Plans.Catalog(c.Request.Context())
	if err != nil {
		renderError(c, err, "list plans failed")
		return
	}

	c.Header("ETag", catalog.ETag)
	c.Header("Cache-Control", "public, max-age=60")

	if c.GetHeader("If-None-Match") == catalog.ETag {
		c.Status(http.StatusNotModified)
		return
	}

	c.JSON(http.StatusOK, catalog.Plans)
}

// GetQuota returns the caller's usage against the effective plan.
//
//	@Summary	Quota usage
//	@Tags		quota
//	@Produce	json
//	@Success	200	{object}	types.QuotaUsage
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/v1/quota [get]
func GetQuota(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	usage, err := services(c).Ledger.Usage(c.Request.Context(), user)
	if err != nil {
		renderError(c, err, "quota usage failed")
		return
	}

	c.JSON(http.StatusOK, usage)
}
