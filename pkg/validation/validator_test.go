package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

type signup struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"first_name" binding:"required,min=1,max=100"`
	Password string `json:"password" binding:"required,pwd"`
}

func TestToDetailsUsesJSONNames(t *testing.T) {
	Init()
	err := binding.Validator.ValidateStruct(signup{Email: "nope", Password: "short"})
	d := ToDetails(err)
	assert.Equal(t, "must be a valid email", d["email"])
	assert.Equal(t, "is required", d["first_name"])
	assert.Equal(t, "must be at least 8 characters long", d["password"])
}

func TestPasswordBcryptLimit(t *testing.T) {
	Init()
	ok := signup{Email: "a@b.co", Name: "A", Password: strings.Repeat("x", MaxPasswordBytes)}
	assert.NoError(t, binding.Validator.ValidateStruct(ok))

	tooLong := ok
	tooLong.Password = strings.Repeat("x", MaxPasswordBytes+1)
	d := ToDetails(binding.Validator.ValidateStruct(tooLong))
	assert.Equal(t, "must be at most 72 bytes long", d["password"])
}

func TestToDetailsFallback(t *testing.T) {
	assert.Nil(t, ToDetails(nil))
	assert.Equal(t, map[string]string{"payload": "invalid payload"}, ToDetails(errors.New("weird")))
}
