package repository

import (
	"errors"

	"VibingStorage/model"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const maxVote = 255

func validatePageParams(p model.TrackPageParams) error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.PageNum, validation.Required, validation.Min(1)),
		validation.Field(&p.PageSize, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return invalid("page: %v", err)
	}
	return validateFilter(p.Filter)
}

func validateFilter(f model.TrackFilter) error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Limit, validation.Min(0)),
	)
	if err != nil {
		return invalid("filter: %v", err)
	}
	return nil
}

var vibeRefRule = validation.By(func(value interface{}) error {
	ref, ok := value.(model.VibeRef)
	if !ok {
		return errors.New("must be a vibe reference")
	}
	if ref.ID < 0 {
		return errors.New("id must be positive")
	}
	if !ref.ByID() && (ref.Group == "" || ref.Name == "") {
		return errors.New("needs an id or both group and name")
	}
	return nil
})

func validatePatch(p model.TrackPatch) error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Path, validation.NilOrNotEmpty),
		validation.Field(&p.Duration, validation.Min(0)),
		validation.Field(&p.NewVote, validation.Min(0), validation.Max(maxVote)),
		validation.Field(&p.AddVibes, validation.Each(vibeRefRule)),
		validation.Field(&p.RemoveVibes, validation.Each(vibeRefRule)),
	)
	if err != nil {
		return invalid("patch: %v", err)
	}
	return nil
}
