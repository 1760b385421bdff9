package parse

import "errors"

var errBlankSection = errors.New("blank section title")
