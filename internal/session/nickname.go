package session

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const MaxNicknameLength = 32

var ErrInvalidNickname = errors.New("invalid nickname")

var validate = newValidator()

type nicknameRequest struct {
	Name string `validate:"required,max=32,printable,startsnotwith=*"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("printable", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), func(r rune) bool { return !unicode.IsPrint(r) }) < 0
	})
	if err != nil {
		panic(fmt.Sprintf("register nickname validation: %v", err))
	}
	return v
}

// ValidateNickname trims name and checks it is non-empty, printable and at
// most MaxNicknameLength characters. A leading "*" is rejected because it marks
// admin messages. It returns the trimmed name.
func ValidateNickname(name string) (string, error) {
	req := nicknameRequest{Name: strings.TrimSpace(name)}
	if err := validate.Struct(req); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidNickname, err)
	}
	return req.Name, nil
}
