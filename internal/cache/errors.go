package cache

import "errors"

// errClosed is returned by every Cache method once Close has been called.
var errClosed = errors.New("cache: closed")
