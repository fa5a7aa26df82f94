package repository

import (
	"database/sql"
	"io/fs"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionguard/backend/internal/db"
)

var placeholder = regexp.MustCompile(`\$\d+`)

func TestInsertSessionArgs_MatchColumns(t *testing.T) {
	args := insertSessionArgs(newSession("t1", "u1", t0, time.Hour))
	columns := strings.Split(sessionColumns, ",")
	assert.Len(t, args, len(columns))
	assert.Len(t, placeholder.FindAllString(insertSessionSQL, -1), len(columns))
}

func TestInsertSessionArgs_UnknownClientMetaIsEmptyString(t *testing.T) {
	s := newSession("t1", "u1", t0, time.Hour)
	args := insertSessionArgs(s)

	for i, name := range []string{"ip_address", "user_agent"} {
		arg := args[2+i]
		require.NotNil(t, arg, name)
		_, isNull := arg.(sql.NullString)
		assert.False(t, isNull, "%s must not bind NULL", name)
		assert.Equal(t, "", arg, name)
	}

	s.IPAddress, s.UserAgent = "192.0.2.1", "curl/8"
	args = insertSessionArgs(s)
	assert.Equal(t, "192.0.2.1", args[2])
	assert.Equal(t, "curl/8", args[3])
}

func TestSessionsSchema_ClientMetaNotNull(t *testing.T) {
	b, err := fs.ReadFile(db.MigrationFS, "migrations/000001_sessions.up.sql")
	require.NoError(t, err)
	schema := string(b)
	for _, col := range []string{"ip_address", "user_agent"} {
		decl := regexp.MustCompile(col + `\s+TEXT NOT NULL DEFAULT ''`)
		assert.Regexp(t, decl, schema, "%s declaration changed; revisit insertSessionArgs", col)
	}
}

