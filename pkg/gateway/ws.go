package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/boristopalov/sciworld/internal/schema"
	"github.com/boristopalov/sciworld/pkg/environment"
)

const wsWriteTimeout = 5 * time.Second

// handleWS answers frames one at a time, in order, against one session.
func (s *Server) handleWS(rw http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(SessionQuery)
	if id == "" {
		id = r.Header.Get(SessionHeader)
	}

	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.maxBody)

	sess := s.sessions.Session(id)
	log := s.logger.WithField("session", sess.ID())
	log.Debug("websocket connected")

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("websocket read failed")
			}
			return
		}

		reply := s.dispatch(r, sess, msg)
		if reply.Type == FrameError {
			log.WithFields(logrus.Fields{"id": reply.ID, "code": reply.Error.Code}).Warn(reply.Error.Message)
		}
		if err := writeFrame(conn, reply); err != nil {
			log.WithError(err).Debug("websocket write failed")
			return
		}
	}
}

func (s *Server) dispatch(r *http.Request, sess *environment.Session, msg []byte) Reply {
	var f Frame
	if err := schema.Validate(schema.Frame, msg); err != nil {
		// echo the id when the frame at least decodes
		_ = json.Unmarshal(msg, &f)
		return errorReply(f.ID, err)
	}
	if err := json.Unmarshal(msg, &f); err != nil {
		return errorReply("", err)
	}

	ctx := r.Context()
	reply := Reply{Type: FrameResult, ID: f.ID}
	switch f.Type {
	case FrameTasks:
		tasks, err := sess.ListTasks(ctx)
		if err != nil {
			return errorReply(f.ID, err)
		}
		reply.Tasks = tasks
	case FrameLoad:
		snap, err := sess.Load(ctx, f.Name, f.Variation)
		if err != nil {
			return errorReply(f.ID, err)
		}
		reply.Snapshot = snap
	case FrameStep:
		snap, err := sess.Step(ctx, f.Action)
		if err != nil {
			return errorReply(f.ID, err)
		}
		reply.Snapshot = snap
	}
	return reply
}

func errorReply(id string, err error) Reply {
	_, code := classify(err)
	return Reply{
		Type:  FrameError,
		ID:    id,
		Error: &ErrorBody{Code: code, Message: err.Error()},
	}
}

func writeFrame(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
