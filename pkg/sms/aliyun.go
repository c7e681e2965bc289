package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	openapiutil "github.com/alibabacloud-go/openapi-util/service"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"
	credential "github.com/aliyun/credentials-go/credentials"
	"go.uber.org/zap"

	"SafeArrival/pkg/errors"
	"SafeArrival/pkg/logger"
)

type AliyunClient struct {
	client *openapi.Client
}

// NewAliyunClient 创建阿里云 SMS 客户端
// 凭据通过 ALIBABA_CLOUD_ACCESS_KEY_ID 和 ALIBABA_CLOUD_ACCESS_KEY_SECRET 自动获取
func NewAliyunClient() (*AliyunClient, error) {
	cred, err := credential.NewCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun credential: %w", err)
	}

	client, err := openapi.NewClient(&openapi.Config{
		Credential: cred,
		Endpoint:   tea.String("dysmsapi.aliyuncs.com"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun client: %w", err)
	}

	return &AliyunClient{client: client}, nil
}

func (c *AliyunClient) createApiInfo(action string) *openapi.Params {
	return &openapi.Params{
		Action:      tea.String(action),
		Version:     tea.String("2017-05-25"),
		Protocol:    tea.String("HTTPS"),
		Method:      tea.String("POST"),
		AuthType:    tea.String("AK"),
		Style:       tea.String("RPC"),
		Pathname:    tea.String("/"),
		ReqBodyType: tea.String("json"),
		BodyType:    tea.String("json"),
	}
}

// SendSingle 发送单条短信，ctx 的截止时间会转换为 SDK 的读超时
func (c *AliyunClient) SendSingle(ctx context.Context, phone, signName, templateCode, templateParam string) (*SendResponse, error) {
	if signName == "" {
		return nil, errors.ErrSignNameRequired
	}
	if templateCode == "" {
		return nil, errors.ErrTemplateCodeRequired
	}

	queries := map[string]interface{}{
		"PhoneNumbers":  tea.String(phone),
		"SignName":      tea.String(signName),
		"TemplateCode":  tea.String(templateCode),
		"TemplateParam": tea.String(templateParam),
	}

	runtime := &util.RuntimeOptions{}
	if deadline, ok := ctx.Deadline(); ok {
		ms := int(time.Until(deadline).Milliseconds())
		if ms <= 0 {
			return nil, ctx.Err()
		}
		runtime.ReadTimeout = tea.Int(ms)
		runtime.ConnectTimeout = tea.Int(ms)
	}

	type result struct {
		resp map[string]interface{}
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := c.client.CallApi(c.createApiInfo("SendSms"), &openapi.OpenApiRequest{
			Query: openapiutil.Query(queries),
		}, runtime)
		done <- result{resp, err}
	}()

	var resp map[string]interface{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			logger.Logger.Error("Failed to send SMS",
				zap.String("template", templateCode),
				zap.Error(r.err),
			)
			return nil, fmt.Errorf("failed to send SMS: %w", r.err)
		}
		resp = r.resp
	}

	if raw := resp["statusCode"]; raw != nil {
		statusCode, err := parseStatusCode(raw)
		if err != nil {
			return nil, err
		}
		if statusCode != 200 {
			logger.Logger.Error("SMS API returned error",
				zap.Int("statusCode", statusCode),
				zap.Any("body", resp["body"]),
			)
			return nil, fmt.Errorf("SMS API error: statusCode=%d", statusCode)
		}
	}

	response := &SendResponse{Provider: "aliyun", Template: templateCode}
	if resp["body"] != nil {
		bodyBytes, err := json.Marshal(resp["body"])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response body: %w", err)
		}

		var body struct {
			BizID     string `json:"BizId"`
			Code      string `json:"Code"`
			Message   string `json:"Message"`
			RequestID string `json:"RequestId"`
		}
		if err := json.Unmarshal(bodyBytes, &body); err == nil {
			response.MessageID = body.BizID
			response.StatusCode = body.Code
			response.Message = body.Message
			response.RequestID = body.RequestID
		}
	}

	if response.StatusCode != "" && response.StatusCode != "OK" {
		logger.Logger.Error("SMS send failed",
			zap.String("code", response.StatusCode),
			zap.String("message", response.Message),
			zap.String("request_id", response.RequestID),
		)
		if isNonRetryableError(response.StatusCode) {
			return nil, errors.NewNonRetryableError(response.StatusCode, response.Message, "SMS configuration error")
		}
		return nil, fmt.Errorf("SMS send failed: %s - %s", response.StatusCode, response.Message)
	}

	logger.Logger.Debug("SMS sent successfully",
		zap.String("template", templateCode),
		zap.String("message_id", response.MessageID),
	)

	return response, nil
}

func parseStatusCode(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case *int:
		if v != nil {
			return *v, nil
		}
	}
	return 0, fmt.Errorf("unexpected SMS status code type %T", raw)
}

// isNonRetryableError 签名、模板、参数类错误重试也不会成功
func isNonRetryableError(code string) bool {
	switch {
	case strings.HasPrefix(code, "isv.SMS_SIGNATURE"),
		strings.HasPrefix(code, "isv.SMS_TEMPLATE"),
		strings.HasPrefix(code, "isv.TEMPLATE"),
		code == "isv.MOBILE_NUMBER_ILLEGAL",
		code == "isv.INVALID_PARAMETERS",
		code == "isv.PARAM_LENGTH_LIMIT",
		code == "isv.AMOUNT_NOT_ENOUGH",
		code == "isp.RAM_PERMISSION_DENY":
		return true
	default:
		return false
	}
}
