// Package service 包含了聊天组件的业务逻辑层。
package service

import (
	"chat-widget-go/internal/category"
	"chat-widget-go/internal/model"
	"chat-widget-go/internal/repository"
	"chat-widget-go/internal/transcript"
	"chat-widget-go/pkg/backend"
	"chat-widget-go/pkg/log"
	"chat-widget-go/pkg/storage"
	"chat-widget-go/pkg/tasks"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrRequestInFlight 表示该会话已有一个请求在等待后端响应。
	ErrRequestInFlight = errors.New("a request is already in flight for this session")
	// ErrMessageNotFound 表示会话中没有该消息。
	ErrMessageNotFound = errors.New("message not found")
	// ErrAttachmentNotFound 表示会话中没有该附件。
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// EventPublisher 发布需要归档的对话事件。
type EventPublisher interface {
	Publish(ctx context.Context, event tasks.TranscriptEvent) error
}

// Upload 是一个待加入会话的附件文件。
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// ChatService 定义了会话的全部操作。所有修改都经由这里，修改后推送事件。
type ChatService interface {
	// Session 返回会话，不存在时创建一个只含欢迎消息的新会话。
	Session(ctx context.Context, sessionID string) (*transcript.Session, error)
	// Bootstrap 在页面加载时调用，continueSession 为 true 时尝试从后端恢复历史。
	Bootstrap(ctx context.Context, sessionID string, continueSession bool) (*transcript.Session, error)
	SendMessage(ctx context.Context, sessionID, text string) error
	SelectCategory(ctx context.Context, sessionID, categoryID string) error
	ShowCategories(ctx context.Context, sessionID string) error
	Clear(ctx context.Context, sessionID string) error
	NewChat(ctx context.Context, sessionID string) error
	AddAttachments(ctx context.Context, sessionID string, uploads []Upload) ([]model.Attachment, error)
	ClearAttachments(ctx context.Context, sessionID string) error
	AttachmentURL(ctx context.Context, sessionID, attachmentID string) (string, error)
	Message(ctx context.Context, sessionID, messageID string) (model.Message, error)
}

type chatService struct {
	sessionRepo repository.SessionRepository
	backend     backend.Client
	attachments storage.AttachmentStore
	publisher   EventPublisher
	broadcaster Broadcaster
	welcome     string
	inFlightTTL time.Duration
	now         func() time.Time

	// 同一进程内对同一会话的读改写串行执行
	locks sync.Map
}

// NewChatService 创建一个新的 ChatService 实例。publisher 和 broadcaster 可以为 nil。
func NewChatService(
	sessionRepo repository.SessionRepository,
	backendClient backend.Client,
	attachments storage.AttachmentStore,
	publisher EventPublisher,
	broadcaster Broadcaster,
	welcome string,
	requestTimeout time.Duration,
) ChatService {
	return &chatService{
		sessionRepo: sessionRepo,
		backend:     backendClient,
		attachments: attachments,
		publisher:   publisher,
		broadcaster: broadcaster,
		welcome:     welcome,
		// 标记的过期时间比后端超时略长，进程崩溃时不会永久卡住
		inFlightTTL: requestTimeout + 30*time.Second,
		now:         time.Now,
	}
}

func (s *chatService) lock(sessionID string) func() {
	v, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// load 读取会话，不存在时创建（不保存）。
func (s *chatService) load(ctx context.Context, sessionID string) (*transcript.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return transcript.NewSession(sessionID, s.welcome, s.now()), nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// mutate 在会话锁内读取、修改并保存会话。fn 返回的事件在保存成功、释放锁之后推送，
// 订阅者在处理事件时可以再次读取会话。
func (s *chatService) mutate(ctx context.Context, sessionID string, fn func(sess *transcript.Session) ([]Event, error)) (*transcript.Session, error) {
	sess, events, err := s.apply(ctx, sessionID, fn)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		s.broadcast(sessionID, ev)
	}
	return sess, nil
}

func (s *chatService) apply(ctx context.Context, sessionID string, fn func(sess *transcript.Session) ([]Event, error)) (*transcript.Session, []Event, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	events, err := fn(sess)
	if err != nil {
		return nil, nil, err
	}
	if err := s.sessionRepo.Save(ctx, sess); err != nil {
		return nil, nil, err
	}
	return sess, events, nil
}

func (s *chatService) broadcast(sessionID string, ev Event) {
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(sessionID, ev)
	}
}

func appendEvent(sess *transcript.Session, msg model.Message) Event {
	idx := sess.Transcript.Append(msg)
	return Event{Type: EventAppend, TranscriptID: sess.Transcript.ID(), Index: idx, Message: &msg}
}

func (s *chatService) publish(ctx context.Context, ev tasks.TranscriptEvent) {
	if s.publisher == nil {
		return
	}
	ev.EventID = uuid.NewString()
	ev.OccurredAt = s.now()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Warnf("发布对话事件失败: session=%s, kind=%s, err=%v", ev.SessionID, ev.Kind, err)
	}
}

func (s *chatService) Session(ctx context.Context, sessionID string) (*transcript.Session, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, repository.ErrSessionNotFound) {
		return nil, err
	}
	sess = transcript.NewSession(sessionID, s.welcome, s.now())
	if err := s.sessionRepo.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Bootstrap 决定页面加载时展示的对话。恢复失败只记录日志，回退为全新会话。
func (s *chatService) Bootstrap(ctx context.Context, sessionID string, continueSession bool) (*transcript.Session, error) {
	if !continueSession {
		return s.fresh(ctx, sessionID)
	}

	history, err := s.backend.GetHistory(ctx, sessionID)
	if err != nil {
		log.Warnf("加载聊天历史失败，开始新的会话: session=%s, err=%v", sessionID, err)
		return s.fresh(ctx, sessionID)
	}
	if history.Status != "success" || len(history.Items) == 0 {
		return s.fresh(ctx, sessionID)
	}
	now := s.now()
	messages := model.DecodeHistory(history.Items, now)
	if len(messages) == 0 {
		return s.fresh(ctx, sessionID)
	}
	if first := messages[0]; first.IsUser() || first.Body.Text != s.welcome {
		messages = append([]model.Message{model.NewAssistantMessage(s.welcome, now)}, messages...)
	}

	return s.mutate(ctx, sessionID, func(sess *transcript.Session) ([]Event, error) {
		sess.Transcript = transcript.Restore(model.NewTranscriptID(now), messages)
		sess.Loading = false
		return []Event{{Type: EventReset, TranscriptID: sess.Transcript.ID()}}, nil
	})
}

func (s *chatService) fresh(ctx context.Context, sessionID string) (*transcript.Session, error) {
	var dropped []model.Attachment
	sess, err := s.mutate(ctx, sessionID, func(sess *transcript.Session) ([]Event, error) {
		dropped = sess.ClearAttachments()
		*sess = *transcript.NewSession(sessionID, s.welcome, s.now())
		return []Event{{Type: EventReset, TranscriptID: sess.Transcript.ID()}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.removeObjects(ctx, dropped)
	return sess, nil
}

// SendMessage 发送用户消息并等待后端响应。文本和附件都为空时不做任何事。
// 不论成功还是失败，附件都会被清空，等待状态也会被清除；失败时只追加一条错误消息，不重试。
func (s *chatService) SendMessage(ctx context.Context, sessionID, text string) error {
	text = strings.TrimSpace(text)

	acquired, err := s.sessionRepo.AcquireInFlight(ctx, sessionID, s.inFlightTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrRequestInFlight
	}
	// 浏览器断开后仍然要把响应写入对话
	bg := context.WithoutCancel(ctx)
	// pending 表示等待状态已保存，但响应还没有写入会话
	var pending bool
	defer func() {
		if pending {
			s.abandon(bg, sessionID)
		}
		if err := s.sessionRepo.ReleaseInFlight(bg, sessionID); err != nil {
			log.Errorf("释放发送标记失败: session=%s, err=%v", sessionID, err)
		}
	}()

	var (
		empty       bool
		category    string
		attachments []model.Attachment
		convID      string
	)
	_, err = s.mutate(bg, sessionID, func(sess *transcript.Session) ([]Event, error) {
		if text == "" && len(sess.Attachments) == 0 {
			empty = true
			return nil, nil
		}
		category = sess.CurrentCategory
		attachments = sess.Attachments
		convID = sess.Transcript.ID()
		ev := appendEvent(sess, model.NewUserMessage(text, attachments, s.now()))
		sess.Loading = true
		return []Event{ev, {Type: EventLoading, TranscriptID: convID, Loading: true}}, nil
	})
	if err != nil || empty {
		return err
	}
	pending = true

	reply, callErr := s.callBackend(bg, backend.ResponseRequest{
		Message:        text,
		Category:       category,
		ConversationID: convID,
	}, attachments)

	var answer model.Message
	if callErr != nil {
		log.Errorf("调用问答后端失败: session=%s, err=%v", sessionID, callErr)
		answer = model.NewAssistantMessage(model.TransportErrorMessage, s.now())
	} else {
		answer = reply.Message(s.now())
	}

	sess, err := s.mutate(bg, sessionID, func(sess *transcript.Session) ([]Event, error) {
		sess.Loading = false
		sess.ClearAttachments()
		ev := appendEvent(sess, answer)
		return []Event{{Type: EventLoading, TranscriptID: sess.Transcript.ID()}, ev}, nil
	})
	if err != nil {
		return err
	}
	pending = false

	names := make([]string, 0, len(attachments))
	for _, a := range attachments {
		names = append(names, a.Name)
	}
	s.publish(bg, tasks.TranscriptEvent{
		Kind:         tasks.EventExchange,
		SessionID:    sessionID,
		TranscriptID: sess.Transcript.ID(),
		Category:     category,
		Question:     text,
		Answer:       answerText(answer),
		AnswerKind:   string(answer.Body.Kind),
		Sources:      sourceLabels(answer.Sources),
		Attachments:  names,
		Failed:       callErr != nil,
	})
	return nil
}

// abandon 在响应没能写入会话时尽力清除等待状态和附件，否则占位消息会一直留在页面上。
func (s *chatService) abandon(ctx context.Context, sessionID string) {
	_, err := s.mutate(ctx, sessionID, func(sess *transcript.Session) ([]Event, error) {
		if !sess.Loading && len(sess.Attachments) == 0 {
			return nil, nil
		}
		sess.Loading = false
		sess.ClearAttachments()
		return []Event{{Type: EventLoading, TranscriptID: sess.Transcript.ID()}}, nil
	})
	if err != nil {
		log.Errorf("清除等待状态失败: session=%s, err=%v", sessionID, err)
	}
}

// callBackend 打开附件流并调用后端，返回分类后的响应。响应体不是 JSON 时按传输失败处理。
func (s *chatService) callBackend(ctx context.Context, req backend.ResponseRequest, attachments []model.Attachment) (*model.Reply, error) {
	for _, a := range attachments {
		if s.attachments == nil {
			break
		}
		rc, err := s.attachments.Open(ctx, a.ObjectName)
		if err != nil {
			log.Warnf("读取附件失败，跳过: name=%s, err=%v", a.Name, err)
			continue
		}
		defer rc.Close()
		req.Files = append(req.Files, backend.File{Name: a.Name, ContentType: a.ContentType, Content: rc})
	}

	body, err := s.backend.GetResponse(ctx, req)
	if err != nil {
		return nil, err
	}
	return model.DecodeReply(body)
}

func answerText(msg model.Message) string {
	switch msg.Body.Kind {
	case model.BodyCode:
		return strings.TrimSpace(msg.Body.Text + "\n" + msg.Body.Code)
	case model.BodyTable:
		if msg.Body.Table != nil {
			return fmt.Sprintf("[table] %s (%d rows)", strings.Join(msg.Body.Table.Columns, ", "), len(msg.Body.Table.Rows))
		}
	}
	return msg.Body.Text
}

func sourceLabels(src *model.Sources) []string {
	if src == nil {
		return nil
	}
	switch src.Kind {
	case model.SourcesCitations:
		out := make([]string, 0, len(src.Citations))
		for _, c := range src.Citations {
			out = append(out, c.Label())
		}
		return out
	case model.SourcesSuggestions:
		out := make([]string, 0, len(src.Suggestions))
		for _, sg := range src.Suggestions {
			out = append(out, sg.Text)
		}
		return out
	default:
		return []string{src.Text}
	}
}

// SelectCategory 切换当前分类，追加用户选择和确认消息，并异步通知后端。
func (s *chatService) SelectCategory(ctx context.Context, sessionID, categoryID string) error {
	sel, err := category.Lookup(categoryID)
	if err != nil {
		return err
	}
	sess, err := s.mutate(ctx, sessionID, func(sess *transcript.Session) ([]Event, error) {
		now := s.now()
		sess.CurrentCategory = sel.ID
		return []Event{
			appendEvent(sess, model.NewUserMessage(sel.Label, nil, now)),
			appendEvent(sess, model.NewAssistantMessage(sel.Acknowledgement(), now)),
		}, nil
	})
	if err != nil {
		return err
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if err := s.backend.SetCategory(bg, sel.ID); err != nil {
			log.Warnf("通知后端分类失败: session=%s, category=%s, err=%v", sessionID, sel.ID, err)
		}
	}()
	s.publish(bg, tasks.TranscriptEvent{
		Kind:         tasks.EventCategory,
		SessionID:    sessionID,
		TranscriptID: sess.Transcript.ID(),
		Category:     sel.ID,
	})
	return nil
}

// ShowCategories 追加一条带分类菜单的助手消息。
func (s *chatService) ShowCategories(ctx context.Context, sessionID string) error {
	_, err := s.mutate(ctx, sessionID, func(sess *transcript.Session) ([]Event, error) {
		msg := model.NewAssistantMessage(category.MenuMessage, s.now())
		msg.ShowMenu = true
		return []Event{appendEvent(sess, msg)}, nil
	})
	return err
}

// Clear 清空对话，只保留新的欢迎消息。
func (s *chatService) Clear(ctx context.Context, sessionID string) error {
	return s.reset(ctx, sessionID, false)
}

// NewChat 开始新对话，同时丢弃待发送的附件。
func (s *chatService) NewChat(ctx context.Context, sessionID string) error {
	return s.reset(ctx, sessionID, true)
}

func (s *chatService) reset(ctx context.Context, sessionID string, dropAttachments bool) error {
	var dropped []model.Attachment
	sess, err := s.mutate(ctx, sessionID, func(sess *transcript.Session) ([]Event, error) {
		sess.Transcript.Reset(s.welcome, s.now())
		sess.CurrentCategory = ""
		if dropAttachments {
			dropped = sess.ClearAttachments()
		}
		return []Event{{Type: EventReset, TranscriptID: sess.Transcript.ID()}}, nil
	})
	if err != nil {
		return err
	}
	s.removeObjects(ctx, dropped)
	s.publish(context.WithoutCancel(ctx), tasks.TranscriptEvent{
		Kind:         tasks.EventReset,
		SessionID:    sessionID,
		TranscriptID: sess.Transcript.ID(),
	})
	return nil
}

// AddAttachments 把文件写入对象存储并加入会话的待发送附件。
func (s *chatService) AddAttachments(ctx context.Context, sessionID string, uploads []Upload) ([]model.Attachment, error) {
	if s.attachments == nil {
		return nil, errors.New("attachment storage is not configured")
	}
	added := make([]model.Attachment, 0, len(uploads))
	for _, u := range uploads {
		id := uuid.NewString()
		contentType := u.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		objectName := fmt.Sprintf("attachments/%s/%s", sessionID, id)
		if err := s.attachments.Put(ctx, objectName, u.Content, u.Size, contentType); err != nil {
			s.removeObjects(ctx, added)
			return nil, err
		}
		added = append(added, model.Attachment{
			ID:          id,
			Name:        u.Name,
			ContentType: contentType,
			Size:        u.Size,
			ObjectName:  objectName,
		})
	}

	_, err := s.mutate(ctx, sessionID, func(sess *transcript.Session) ([]Event, error) {
		sess.Attachments = append(sess.Attachments, added...)
		return nil, nil
	})
	if err != nil {
		s.removeObjects(ctx, added)
		return nil, err
	}
	return added, nil
}

// ClearAttachments 取消待发送的附件。
func (s *chatService) ClearAttachments(ctx context.Context, sessionID string) error {
	var dropped []model.Attachment
	_, err := s.mutate(ctx, sessionID, func(sess *transcript.Session) ([]Event, error) {
		dropped = sess.ClearAttachments()
		return nil, nil
	})
	if err != nil {
		return err
	}
	s.removeObjects(ctx, dropped)
	return nil
}

// AttachmentURL 为消息中的附件徽标生成临时下载地址。
func (s *chatService) AttachmentURL(ctx context.Context, sessionID, attachmentID string) (string, error) {
	if s.attachments == nil {
		return "", ErrAttachmentNotFound
	}
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return "", err
	}
	find := func(list []model.Attachment) (model.Attachment, bool) {
		for _, a := range list {
			if a.ID == attachmentID {
				return a, true
			}
		}
		return model.Attachment{}, false
	}
	att, ok := find(sess.Attachments)
	for _, msg := range sess.Transcript.Messages() {
		if ok {
			break
		}
		att, ok = find(msg.Attachments)
	}
	if !ok {
		return "", ErrAttachmentNotFound
	}
	return s.attachments.PresignedURL(ctx, att.ObjectName, time.Hour)
}

// removeObjects 删除未发送就被丢弃的附件文件。已发送的附件保留，供消息上的徽标下载。
func (s *chatService) removeObjects(ctx context.Context, attachments []model.Attachment) {
	if s.attachments == nil {
		return
	}
	for _, a := range attachments {
		if err := s.attachments.Remove(ctx, a.ObjectName); err != nil {
			log.Warnf("删除附件失败: object=%s, err=%v", a.ObjectName, err)
		}
	}
}

func (s *chatService) Message(ctx context.Context, sessionID, messageID string) (model.Message, error) {
	sess, err := s.Session(ctx, sessionID)
	if err != nil {
		return model.Message{}, err
	}
	msg, _, ok := sess.Transcript.Find(messageID)
	if !ok {
		return model.Message{}, ErrMessageNotFound
	}
	return msg, nil
}
