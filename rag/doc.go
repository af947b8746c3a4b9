// Package rag 实现教育平台的自适应检索增强回答引擎。
//
// 给定一个自然语言问题，引擎按策略选择检索管线变体，从向量库
// 取回候选证据，融合去重并重排序，经置信度门控后生成带来源
// 标注的落地回答：
//
//	StrategySelector → QueryTransformer → RetrievalExecutor
//	  → ResultFuser → ConfidenceGate → (短路 | AnswerSynthesizer)
//
// 四种策略：
//   - StrategyMultiQuery     多查询扩展，并发检索后融合
//   - StrategyConversational 结合对话历史重写为独立问题
//   - StrategySelfQuery      从问题中抽取元数据过滤条件
//   - StrategyHybrid         语义分数与关键词分数加权混合
//
// 所有实体在单次请求内创建和销毁，本子系统不保留任何跨请求
// 状态；向量库与语言模型均通过窄接口注入。
package rag
