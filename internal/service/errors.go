package service

import "errors"

var ErrUnknownIntent = errors.New("unknown intent")
