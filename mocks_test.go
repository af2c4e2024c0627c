package asynclife

import (
	"reflect"

	"github.com/golang/mock/gomock"
)

// MockExecutor is a hand-written gomock-style mock for Executor, shaped the
// way mockgen would generate it, used where a unit test needs to assert on
// how many times (and with what) listener dispatch was invoked rather than
// actually running tasks.
type MockExecutor struct {
	ctrl     *gomock.Controller
	recorder *MockExecutorMockRecorder
}

// MockExecutorMockRecorder is the recorder for MockExecutor.
type MockExecutorMockRecorder struct {
	mock *MockExecutor
}

// NewMockExecutor creates a new mock instance.
func NewMockExecutor(ctrl *gomock.Controller) *MockExecutor {
	mock := &MockExecutor{ctrl: ctrl}
	mock.recorder = &MockExecutorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockExecutor) EXPECT() *MockExecutorMockRecorder {
	return m.recorder
}

// Execute mocks base method.
func (m *MockExecutor) Execute(task func()) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Execute", task)
}

// Execute indicates an expected call of Execute.
func (mr *MockExecutorMockRecorder) Execute(task interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Execute",
		reflect.TypeOf((*MockExecutor)(nil).Execute), task)
}

// MockLogger is a hand-written gomock-style mock for Logger.
type MockLogger struct {
	ctrl     *gomock.Controller
	recorder *MockLoggerMockRecorder
}

// MockLoggerMockRecorder is the recorder for MockLogger.
type MockLoggerMockRecorder struct {
	mock *MockLogger
}

// NewMockLogger creates a new mock instance.
func NewMockLogger(ctrl *gomock.Controller) *MockLogger {
	mock := &MockLogger{ctrl: ctrl}
	mock.recorder = &MockLoggerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockLogger) EXPECT() *MockLoggerMockRecorder {
	return m.recorder
}

func (m *MockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.ctrl.T.Helper()
	varargs := append([]interface{}{msg}, keysAndValues...)
	m.ctrl.Call(m, "Info", varargs...)
}

func (mr *MockLoggerMockRecorder) Info(msg interface{}, keysAndValues ...interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	varargs := append([]interface{}{msg}, keysAndValues...)
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Info",
		reflect.TypeOf((*MockLogger)(nil).Info), varargs...)
}

func (m *MockLogger) Debug(msg string, keysAndValues ...interface{}) {
	m.ctrl.T.Helper()
	varargs := append([]interface{}{msg}, keysAndValues...)
	m.ctrl.Call(m, "Debug", varargs...)
}

func (mr *MockLoggerMockRecorder) Debug(msg interface{}, keysAndValues ...interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	varargs := append([]interface{}{msg}, keysAndValues...)
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Debug",
		reflect.TypeOf((*MockLogger)(nil).Debug), varargs...)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.ctrl.T.Helper()
	varargs := append([]interface{}{msg}, keysAndValues...)
	m.ctrl.Call(m, "Warn", varargs...)
}

func (mr *MockLoggerMockRecorder) Warn(msg interface{}, keysAndValues ...interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	varargs := append([]interface{}{msg}, keysAndValues...)
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Warn",
		reflect.TypeOf((*MockLogger)(nil).Warn), varargs...)
}

func (m *MockLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	m.ctrl.T.Helper()
	varargs := append([]interface{}{err, msg}, keysAndValues...)
	m.ctrl.Call(m, "Error", varargs...)
}

func (mr *MockLoggerMockRecorder) Error(err, msg interface{}, keysAndValues ...interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	varargs := append([]interface{}{err, msg}, keysAndValues...)
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Error",
		reflect.TypeOf((*MockLogger)(nil).Error), varargs...)
}

func (m *MockLogger) Named(name string) Logger {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Named", name)
	ret0, _ := ret[0].(Logger)
	return ret0
}

func (mr *MockLoggerMockRecorder) Named(name interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Named",
		reflect.TypeOf((*MockLogger)(nil).Named), name)
}
