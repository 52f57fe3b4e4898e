package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeleteFile soft deletes one file and frees its quota.
//
//	@Summary	Delete file
//	@Tags		files
//	@Param		fileId	path	string	true	"file id"
//	@Success	204
//	@Failure	404	{object}	ErrorResponse
//	@Router		/api/v1/files/{fileId} [delete]
func DeleteFile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := services(c).Files.DeleteFile(c.Request.Context(), user, c.Param("fileId")); err != nil {
		renderError(c, err, "delete file failed")
		return
	}

	c.Status(http.StatusNoContent)
}
