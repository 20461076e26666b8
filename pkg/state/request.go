package state

import "time"

// Per-request bookkeeping consumed by the logger and metrics writers.

type ReqResponseState int32

const (
	ResponseState_Nil ReqResponseState = iota
	ResponseState_Success
	ResponseState_NotFound
	ResponseState_BadRequest
	ResponseState_GatewayError
	ResponseState_GatewayTimeout
	ResponseState_Error
	ResponseState_Count
)

func (rrs ReqResponseState) String() string {
	switch rrs {
	case ResponseState_Nil:
		return "nil"
	case ResponseState_Success:
		return "ok"
	case ResponseState_NotFound:
		return "notfound"
	case ResponseState_BadRequest:
		return "badreq"
	case ResponseState_GatewayError:
		return "gatewayerr"
	case ResponseState_GatewayTimeout:
		return "gatewaytimeout"
	case ResponseState_Error:
		return "err"
	default:
		return "unknown"
	}
}

func (rrs ReqResponseState) AsStatusCode() int {
	switch rrs {
	case ResponseState_Nil:
		return 0
	case ResponseState_Success:
		return 200
	case ResponseState_NotFound:
		return 404
	case ResponseState_BadRequest:
		return 400
	case ResponseState_GatewayError:
		return 502
	case ResponseState_GatewayTimeout:
		return 504
	case ResponseState_Error:
		return 500
	default:
		return -1
	}
}

type ReqFetchState int32

const (
	FetchState_Nil ReqFetchState = iota
	FetchState_Success
	FetchState_NotFound
	FetchState_FetchError
	FetchState_Timeout
	FetchState_Count
)

func (rfs ReqFetchState) String() string {
	switch rfs {
	case FetchState_Nil:
		return "nil"
	case FetchState_Success:
		return "ok"
	case FetchState_NotFound:
		return "notfound"
	case FetchState_FetchError:
		return "fetcherr"
	case FetchState_Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

type HttpRequestData struct {
	Path      string
	UserAgent string
	Referrer  string
}

type ReqDuration struct {
	Parse       time.Duration
	CacheLookup time.Duration
	CacheSet    time.Duration
	Fetch       time.Duration
	RespWrite   time.Duration
	Total       time.Duration
}

// TileLogCoord is the public-facing address recorded in logs and
// metrics. A plain value struct so this package stays a leaf.
type TileLogCoord struct {
	Level int
	Row   int
	Col   int
}

// RequestState accumulates the outcome of a single tile request.
type RequestState struct {
	ResponseState        ReqResponseState
	FetchState           ReqFetchState
	CacheHit             bool
	IsCacheLookupError   bool
	IsResponseWriteError bool
	Duration             ReqDuration
	Coord                *TileLogCoord
	HttpData             HttpRequestData
	ResponseSize         int
}

func (reqState *RequestState) AsJsonMap() map[string]interface{} {
	result := make(map[string]interface{})

	if reqState.FetchState > FetchState_Nil {
		result["fetch"] = map[string]interface{}{
			"state": reqState.FetchState.String(),
		}
	}

	reqStateErrs := make(map[string]bool)
	if reqState.IsResponseWriteError {
		reqStateErrs["response_write"] = true
	}
	if reqState.IsCacheLookupError {
		reqStateErrs["cache_lookup"] = true
	}
	if len(reqStateErrs) > 0 {
		result["error"] = reqStateErrs
	}

	result["timing"] = map[string]int64{
		"parse":        reqState.Duration.Parse.Milliseconds(),
		"cache_lookup": reqState.Duration.CacheLookup.Milliseconds(),
		"cache_set":    reqState.Duration.CacheSet.Milliseconds(),
		"fetch":        reqState.Duration.Fetch.Milliseconds(),
		"resp_write":   reqState.Duration.RespWrite.Milliseconds(),
		"total":        reqState.Duration.Total.Milliseconds(),
	}

	httpJsonData := make(map[string]interface{})
	httpJsonData["path"] = reqState.HttpData.Path
	if userAgent := reqState.HttpData.UserAgent; userAgent != "" {
		httpJsonData["user_agent"] = userAgent
	}
	if referrer := reqState.HttpData.Referrer; referrer != "" {
		httpJsonData["referer"] = referrer
	}
	if reqState.Coord != nil {
		result["coord"] = map[string]int{
			"level": reqState.Coord.Level,
			"row":   reqState.Coord.Row,
			"col":   reqState.Coord.Col,
		}
	}
	if responseSize := reqState.ResponseSize; responseSize > 0 {
		httpJsonData["response_size"] = responseSize
	}
	httpJsonData["status"] = reqState.ResponseState.AsStatusCode()
	result["http"] = httpJsonData

	result["cache"] = map[string]interface{}{
		"hit": reqState.CacheHit,
	}

	return result
}
