package response

// Business codes carried in the envelope. Zero means success.
const (
	CodeSuccess      = 0
	CodeSystem       = -1
	CodeValidation   = 40000
	CodeUnauthorized = 40100
	CodeForbidden    = 40300
	CodeNotFound     = 40400
	CodeConflict     = 40900
)

// Response represents a standard API response format
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Page is the data shape of paginated list responses.
type Page struct {
	List     interface{} `json:"list"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
}

// Success returns a standard success response wrapping the data
func Success(data interface{}) Response {
	return Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	}
}

// Paged wraps one page of a list.
func Paged(list interface{}, total int64, page, pageSize int) Response {
	return Success(Page{List: list, Total: total, Page: page, PageSize: pageSize})
}

// Error returns a standard error response wrapping the error message
func Error(code int, message string) Response {
	return Response{
		Code:    code,
		Message: message,
		Data:    nil,
	}
}
