package listing

import (
	"context"
	stderrors "errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	domainimage "lazy-lister/internal/domain/image"
	domainlisting "lazy-lister/internal/domain/listing"
	"lazy-lister/internal/platform/errors"
	"lazy-lister/internal/platform/logging"
	"lazy-lister/internal/platform/observability"
	httptransport "lazy-lister/internal/transport/http"
	"lazy-lister/internal/utils"
)

// multipartOverhead is the room left for form fields and boundaries on top of
// the image size limit.
const multipartOverhead = 1 << 20

// Service 列表生成服务的HTTP传输层实现
type Service struct {
	logger   *logging.Logger
	pipeline *domainimage.Pipeline
	listings *domainlisting.Service
	provider Provider
	metrics  *observability.Metrics
	maxBody  int64
}

// Options wires the relay handlers.
type Options struct {
	Logger       *logging.Logger
	Pipeline     *domainimage.Pipeline
	Listings     *domainlisting.Service
	Provider     Provider
	Metrics      *observability.Metrics
	MaxImageSize int64
}

// NewService 创建新的列表生成服务实例
func NewService(opts Options) (*Service, error) {
	if opts.Pipeline == nil {
		return nil, errors.New(errors.KindConfig, "listing.new", "image pipeline is required")
	}
	if opts.Listings == nil {
		return nil, errors.New(errors.KindConfig, "listing.new", "listing service is required")
	}
	if opts.Provider == nil {
		return nil, errors.New(errors.KindConfig, "listing.new", "provider is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Service{
		logger:   opts.Logger,
		pipeline: opts.Pipeline,
		listings: opts.Listings,
		provider: opts.Provider,
		metrics:  opts.Metrics,
		maxBody:  opts.MaxImageSize + multipartOverhead,
	}, nil
}

// Register 注册列表生成相关的HTTP路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/generate", s.handleGet)
	router.POST("/generate", s.handlePost)
	router.GET("/prompt", s.handlePrompt)

	s.logger.InfoTag("HTTP", "listing routes registered")
	return nil
}

// handleGet 处理GET请求（状态检查）
// @Summary Relay status
// @Description Reports the configured provider and model as plain text
// @Tags Listing
// @Produce plain
// @Success 200 {string} string "status line"
// @Router /api/generate [get]
func (s *Service) handleGet(c *gin.Context) {
	if !s.provider.Ready() {
		c.String(http.StatusOK, "Lazy Lister relay is running, but the %s provider has no API key configured", s.provider.Name())
		return
	}
	c.String(http.StatusOK, "Lazy Lister relay is running: provider=%s model=%s", s.provider.Name(), s.provider.Model())
}

// handlePost 处理POST请求（生成商品文案）
// @Summary Generate a listing
// @Description Upload an item photo and receive a sales caption from the model
// @Tags Listing
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "item photo"
// @Param prompt formData string false "prompt text, defaults to the built-in template"
// @Param condition formData string false "New, UK Used or Naija Used"
// @Param platform formData string false "Instagram, WhatsApp Status or Jiji"
// @Success 200 {object} httptransport.ResultResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /api/generate [post]
func (s *Service) handlePost(c *gin.Context) {
	requestID := httptransport.RequestID(c)
	s.logger.DebugTag("Listing", "request_id=%s state=received", requestID)

	req, err := s.parseMultipartRequest(c)
	if err != nil {
		httptransport.RespondError(c, s.logger, err)
		return
	}
	s.metrics.ObserveImageSize(req.Image.Size())

	s.logger.DebugFields("listing request", map[string]interface{}{
		"request_id": requestID,
		"image_size": req.Image.Size(),
		"mime_type":  req.Image.MIMEType,
		"prompt_set": req.Prompt != "",
		"condition":  string(req.Condition),
		"platform":   string(req.Platform),
	})

	result, err := s.listings.Generate(c.Request.Context(), *req)
	if err != nil {
		s.logger.DebugTag("Listing", "request_id=%s state=responding-error", requestID)
		httptransport.RespondError(c, s.logger, err)
		return
	}

	s.logger.DebugTag("Listing", "request_id=%s state=responding-ok chars=%d", requestID, len([]rune(result.Text)))
	httptransport.RespondResult(c, result.Text)
}

// handlePrompt returns the prompt the server would send for the given options.
// @Summary Preview the prompt
// @Tags Listing
// @Produce json
// @Param condition query string false "New, UK Used or Naija Used"
// @Param platform query string false "Instagram, WhatsApp Status or Jiji"
// @Success 200 {object} httptransport.PromptResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Router /api/prompt [get]
func (s *Service) handlePrompt(c *gin.Context) {
	condition, err := domainlisting.ParseCondition(c.Query("condition"))
	if err != nil {
		httptransport.RespondError(c, s.logger, err)
		return
	}
	platform, err := domainlisting.ParsePlatform(c.Query("platform"))
	if err != nil {
		httptransport.RespondError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, httptransport.PromptResponse{
		Prompt: domainlisting.BuildPrompt("", condition, platform),
	})
}

// parseMultipartRequest 解析multipart表单请求
func (s *Service) parseMultipartRequest(c *gin.Context) (*domainlisting.Request, error) {
	const op = "listing.parse_request"
	requestID := httptransport.RequestID(c)

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
	if err := c.Request.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case stderrors.As(err, &tooLarge):
			return nil, errors.New(errors.KindInput, op, "Image too large")
		case stderrors.Is(err, http.ErrNotMultipart), stderrors.Is(err, http.ErrMissingBoundary):
			return nil, domainlisting.ErrNoImage
		default:
			return nil, errors.Wrap(errors.KindInput, op, "Invalid form data", err)
		}
	}
	// Middleware swaps c.Request, so net/http only cleans up the original one.
	defer c.Request.MultipartForm.RemoveAll()

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		return nil, domainlisting.ErrNoImage
	}
	defer file.Close()
	if header.Size == 0 {
		return nil, domainlisting.ErrNoImage
	}

	condition, err := domainlisting.ParseCondition(c.Request.FormValue("condition"))
	if err != nil {
		return nil, err
	}
	platform, err := domainlisting.ParsePlatform(c.Request.FormValue("platform"))
	if err != nil {
		return nil, err
	}

	s.logger.DebugTag("Listing", "request_id=%s state=validating filename=%s size=%d", requestID, utils.RemoveControlCharacters(header.Filename), header.Size)

	payload, err := s.pipeline.Process(c.Request.Context(), domainimage.Input{
		Reader:         file,
		DeclaredFormat: declaredFormat(header),
		Source:         fmt.Sprintf("upload:%s", requestID),
	})
	if err != nil {
		return nil, err
	}
	s.logger.DebugTag("Listing", "request_id=%s state=encoding mime=%s base64_len=%d", requestID, payload.MIMEType, len(payload.Base64))

	return &domainlisting.Request{
		RequestID: requestID,
		Image:     payload,
		Prompt:    c.Request.FormValue("prompt"),
		Condition: condition,
		Platform:  platform,
	}, nil
}

// declaredFormat prefers the part's Content-Type and falls back to the file
// extension.
func declaredFormat(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return filepath.Ext(header.Filename)
}
