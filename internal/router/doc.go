// Package router selects the upstream for a request path.
//
// Routes map a path prefix to an upstream. A prefix matches a path when
// the path equals it or continues with a "/" after it, so "/fs" matches
// "/fs/read" but not "/fsx". The prefix "/" matches every path. Among
// matching routes the longest prefix wins; equal prefixes resolve to the
// route configured first. When nothing matches, the optional default
// route is used.
//
//	r, err := router.New(routes, router.WithDefault("fallback"))
//	if err != nil {
//	    return err
//	}
//	m, err := r.Match("/fs/admin/read")
package router
