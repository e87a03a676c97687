package handler

import "errors"

var (
	errInvalidFilterType  = errors.New("filter_type must be one of: all, creation_date")
	errMissingFilterValue = errors.New("creation_date filter requires with_value")
	errPartialCustomSize  = errors.New("width and height must both be positive integers")
)
