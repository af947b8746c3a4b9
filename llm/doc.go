// Package llm 提供回答引擎所依赖的语言模型抽象。
//
// 核心是 Completer 接口：单次文本补全调用，无隐式记忆。
// 所有组件通过构造函数注入 Completer，禁止包级单例客户端，
// 以便在测试中替换为确定性的 mock 实现。
package llm
