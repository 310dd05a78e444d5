package sourcecfg

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
)

func (s *SQL) mysqlDSN() string {
	c := mysql.NewConfig()
	c.User = s.UserName
	c.Passwd = s.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", s.Host, s.Port)
	c.DBName = s.DB
	c.ParseTime = true
	c.Collation = "utf8mb4_general_ci"
	c.Params = map[string]string{"autocommit": "true"}
	for k, v := range s.SessionVariableValues {
		c.Params[k] = v
	}
	return c.FormatDSN()
}
