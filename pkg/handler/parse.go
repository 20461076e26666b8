package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/uxmanz/ArcgisTerrain-Server/pkg/state"
	"github.com/uxmanz/ArcgisTerrain-Server/pkg/tile"
)

type ParseResult struct {
	Addr     tile.Address
	HttpData state.HttpRequestData
}

type Parser interface {
	Parse(*http.Request) (*ParseResult, error)
}

func ParseHttpData(req *http.Request) state.HttpRequestData {
	return state.HttpRequestData{
		Path:      req.URL.Path,
		UserAgent: req.UserAgent(),
		Referrer:  req.Referer(),
	}
}

type CoordParseError struct {
	// relevant values are set when parse fails
	BadLevel string
	BadRow   string
	BadCol   string
}

func (cpe *CoordParseError) IsError() bool {
	return cpe.BadLevel != "" || cpe.BadRow != "" || cpe.BadCol != ""
}

func (cpe *CoordParseError) Error() string {
	if cpe.BadLevel != "" {
		return fmt.Sprintf("Invalid level: %s", cpe.BadLevel)
	}
	if cpe.BadRow != "" {
		return fmt.Sprintf("Invalid row: %s", cpe.BadRow)
	}
	if cpe.BadCol != "" {
		return fmt.Sprintf("Invalid col: %s", cpe.BadCol)
	}
	panic("No coord parse error")
}

type ParseError struct {
	CoordError *CoordParseError
}

func (pe *ParseError) Error() string {
	if pe.CoordError != nil {
		return pe.CoordError.Error()
	}
	panic("ParseError: No error")
}

// TileMuxParser extracts the public {level}/{row}/{col} address from
// gorilla/mux route variables. Coordinates must be non-negative
// integers.
type TileMuxParser struct{}

func parseCoordinate(raw string) (int, bool) {
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func (tp *TileMuxParser) Parse(req *http.Request) (*ParseResult, error) {
	m := mux.Vars(req)

	parseResult := &ParseResult{
		HttpData: ParseHttpData(req),
	}

	var coordError CoordParseError
	var ok bool

	level := m["level"]
	parseResult.Addr.Level, ok = parseCoordinate(level)
	if !ok {
		coordError.BadLevel = level
	}

	row := m["row"]
	parseResult.Addr.Row, ok = parseCoordinate(row)
	if !ok {
		coordError.BadRow = row
	}

	col := m["col"]
	parseResult.Addr.Col, ok = parseCoordinate(col)
	if !ok {
		coordError.BadCol = col
	}

	if coordError.IsError() {
		return parseResult, &ParseError{
			CoordError: &coordError,
		}
	}

	return parseResult, nil
}
