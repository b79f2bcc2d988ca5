package httpapi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/atvirokodosprendimai/mailroom/internal/core/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest turns the first validator failure into a domain
// ValidationError named after the JSON field.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	reason := fe.Tag()
	switch fe.Tag() {
	case "required":
		reason = "is required"
	case "max":
		reason = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		reason = "must be an e-mail address"
	}
	return domain.NewValidationError(fe.Field(), reason)
}

type createCompanyRequest struct {
	Name        string `json:"nomeEmpresa" validate:"required,max=200"`
	SenderAlias string `json:"remetente" validate:"max=200"`
	LogoRef     string `json:"logo" validate:"max=500"`
	Email       string `json:"email" validate:"omitempty,email,max=320"`
	Status      string `json:"statusEmpresa" validate:"max=100"`
	Situation   string `json:"situacao" validate:"max=100"`
	Message     string `json:"mensagem" validate:"max=2000"`
}

func (r createCompanyRequest) toDomain() domain.NewCompany {
	return domain.NewCompany{
		Name:        r.Name,
		SenderAlias: r.SenderAlias,
		LogoRef:     r.LogoRef,
		Email:       r.Email,
		Status:      r.Status,
		Situation:   r.Situation,
		Message:     r.Message,
	}
}

type createCorrespondenceRequest struct {
	Sender      string     `json:"remetente" validate:"required,max=200"`
	CompanyName string     `json:"nomeEmpresaConexa" validate:"max=200"`
	ReceivedAt  *time.Time `json:"dataRecebimento"`
	NotifiedAt  *time.Time `json:"dataAvisoConexa"`
	PhotoRef    string     `json:"fotoCorrespondencia" validate:"max=200"`
	Status      string     `json:"statusCorresp"`
}

type updateCorrespondenceRequest struct {
	Status      string     `json:"statusCorresp" validate:"required"`
	Sender      *string    `json:"remetente" validate:"omitempty,min=1,max=200"`
	CompanyName *string    `json:"nomeEmpresaConexa" validate:"omitempty,max=200"`
	NotifiedAt  *time.Time `json:"dataAvisoConexa"`
	PhotoRef    *string    `json:"fotoCorrespondencia" validate:"omitempty,max=200"`
}

func (r updateCorrespondenceRequest) patch() domain.CorrespondencePatch {
	return domain.CorrespondencePatch{
		Sender:      r.Sender,
		CompanyName: r.CompanyName,
		NotifiedAt:  r.NotifiedAt,
		PhotoRef:    r.PhotoRef,
	}
}
