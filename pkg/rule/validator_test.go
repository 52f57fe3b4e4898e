package rule_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/rule"
)

type intentRequest struct {
	ExpectedFileCount int    `rule:"required,min=1"`
	ExpectedFileSize  int64  `rule:"required,min=1"`
	Slug              string `rule:"omitempty,slug"`
}

func TestEngine(t *testing.T) {
	require.NotNil(t, rule.Engine())
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, rule.ValidateStruct(intentRequest{ExpectedFileCount: 2, ExpectedFileSize: 10}))
	assert.NoError(t, rule.ValidateStruct(intentRequest{ExpectedFileCount: 1, ExpectedFileSize: 1, Slug: "team-photos"}))

	err := rule.ValidateStruct(intentRequest{ExpectedFileCount: 0, ExpectedFileSize: 10})
	require.Error(t, err)

	verrs := rule.Errors(err)
	require.Len(t, verrs, 1)
	assert.Contains(t, verrs, "intentRequest.ExpectedFileCount")
	assert.Contains(t, verrs.Error(), "required")
}

func TestSlugRule(t *testing.T) {
	cases := map[string]bool{
		"abc":            true,
		"team-photos-24": true,
		"ab":             false,
		"-leading":       false,
		"trailing-":      false,
		"Upper":          false,
		"with space":     false,
	}

	for slug, ok := range cases {
		err := rule.ValidateVar(slug, "slug")
		if ok {
			assert.NoError(t, err, slug)
		} else {
			assert.Error(t, err, slug)
		}
	}
}

func TestSignatureAlias(t *testing.T) {
	assert.NoError(t, rule.ValidateVar("q1w2e3r4t5y6u7i8o9p0-_AbCdEfGhIjKlMnOpQrStU", "signature"))
	assert.Error(t, rule.ValidateVar("short", "signature"))
	assert.Error(t, rule.ValidateVar("has/slash+plus=AbCdEfGhIjKlMnOp", "signature"))
}

func TestErrorsIgnoresForeignErrors(t *testing.T) {
	assert.Nil(t, rule.Errors(assert.AnError))
}

func TestValidateVar(t *testing.T) {
	assert.NoError(t, rule.ValidateVar("owner@example.com", "required,email"))
	assert.Error(t, rule.ValidateVar("invalid-email", "required,email"))
}

func TestRegisterValidation(t *testing.T) {
	err := rule.RegisterValidation("even_length", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String())%2 == 0
	})
	require.NoError(t, err)

	assert.NoError(t, rule.ValidateVar("test", "even_length"))
	assert.Error(t, rule.ValidateVar("test1", "even_length"))
}

func TestRegisterAlias(t *testing.T) {
	rule.RegisterAlias("min_required", "required,min=3")

	assert.NoError(t, rule.ValidateVar("abc", "min_required"))
	assert.Error(t, rule.ValidateVar("ab", "min_required"))
}
