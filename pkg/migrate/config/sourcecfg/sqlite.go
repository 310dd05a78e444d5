package sourcecfg

// read only , the source is never written to
func (s *SQL) sqliteDSN() string {
	return "file:" + s.Path + "?mode=ro"
}
