package sourcecfg

import (
	"fmt"
	"net/url"
)

func (s *SQL) postgresDSN() string {
	q := url.Values{}
	q.Set("sslmode", s.SSLMode)
	if s.Schema != "" {
		q.Set("search_path", s.Schema)
	}
	for k, v := range s.SessionVariableValues {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(s.UserName, s.Password),
		Host:     fmt.Sprintf("%s:%d", s.Host, s.Port),
		Path:     "/" + s.DB,
		RawQuery: q.Encode(),
	}
	return u.String()
}
