// Package tokenizer 提供 token 计数器:
// 默认的 ceil(字符数/4) 估算器, 以及基于 tiktoken 的精确计数器 (首次使用时加载编码, 失败回退估算器).
package tokenizer
