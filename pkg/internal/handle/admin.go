package handle

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/types"
)

// UpsertUser provisions a profile pushed by the identity provider.
//
//	@Summary	Upsert user
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.UpsertUserRequest	true	"profile"
//	@Success	200		{object}	model.User
//	@Router		/api/v1/admin/users [post]
func UpsertUser(c *gin.Context) {
	var req types.UpsertUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := services(c).Users.Upsert(c.Request.Context(), &req)
	if err != nil {
		renderError(c, err, "upsert user failed")
		return
	}

	c.JSON(http.StatusOK, user)
}

// SetUserPlan records the plan assignment pushed by the billing provider.
//
//	@Summary	Assign plan
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Param		userId	path		string					true	"user id"
//	@Param		body	body		types.SetPlanRequest	true	"assignment"
//	@Success	200		{object}	model.UserPlan
//	@Router		/api/v1/admin/users/{userId}/plan [put]
func SetUserPlan(c *gin.Context) {
	var req types.SetPlanRequest
	if !bindJSON(c, &req) {
		return
	}

	plan, err := services(c).Users.SetPlan(c.Request.Context(), c.Param("userId"), &req)
	if err != nil {
		renderError(c, err, "set plan failed")
		return
	}

	c.JSON(http.StatusOK, plan)
}

// UpsertPlan creates or updates a catalog plan.
//
//	@Summary	Upsert plan
//	@Tags		admin
//	@Accept		json
//	@Produce	json
//	@Param		body	body		types.UpsertPlanRequest	true	"plan"
//	@Success	200		{object}	model.Plan
//	@Router		/api/v1/admin/plans [post]
func UpsertPlan(c *gin.Context) {
	var req types.UpsertPlanRequest
	if !bindJSON(c, &req) {
		return
	}

	plan := &model.Plan{ID: req.ID, Name: req.Name, QuotaMB: req.QuotaMB}
	if req.PolarID != "" {
		plan.PolarID = &req.PolarID
	}

	if err := services(c).Plans.Upsert(c.Request.Context(), plan); err != nil {
		renderError(c, err, "upsert plan failed")
		return
	}

	c.JSON(http.StatusOK, plan)
}

// TriggerSweep runs one sweep pass now.
//
//	@Summary	Run sweep
//	@Tags		admin
//	@Produce	json
//	@Success	200	{object}	types.SweepResult
//	@Router		/api/v1/admin/sweep [post]
func TriggerSweep(c *gin.Context) {
	res, err := services(c).Sweeper.Sweep(c.Request.Context(), time.Now().UTC())
	if err != nil {
		renderError(c, err, "sweep failed")
		return
	}

	c.JSON(http.StatusOK, res)
}
