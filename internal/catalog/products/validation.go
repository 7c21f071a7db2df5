package products

import (
	"errors"
	"strings"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return errors.New("product code is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("product name is required")
	}
	if p.Price < 0 {
		return errors.New("product price must be >= 0")
	}
	if p.AlertThreshold < 0 {
		return errors.New("alert threshold must be >= 0")
	}
	return nil
}

func (s *Service) validateVariant(v Variant) error {
	if v.ProductID <= 0 {
		return errors.New("variant requires a product")
	}
	if strings.TrimSpace(v.Name) == "" {
		return errors.New("variant name is required")
	}
	if v.Price < 0 {
		return errors.New("variant price must be >= 0")
	}
	return nil
}
